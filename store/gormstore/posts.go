package gormstore

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/store"
)

func (s *Store) CreatePost(ctx context.Context, p *models.Post) error {
	return wrapError(s.conn(ctx).Create(p).Error, "create post")
}

func (s *Store) GetPost(ctx context.Context, kind models.Kind, id string) (*models.Post, error) {
	var p models.Post
	if err := s.conn(ctx).Where("kind = ? AND id = ?", kind, id).First(&p).Error; err != nil {
		return nil, wrapError(err, "get post")
	}
	return &p, nil
}

func (s *Store) ListPosts(ctx context.Context, q store.PostQuery) ([]models.Post, int64, error) {
	base := s.conn(ctx).Model(&models.Post{}).Where("kind = ?", q.Kind)
	if q.AuthorID != "" {
		base = base.Where("author_id = ?", q.AuthorID)
	}
	if q.Search != "" {
		like := "%" + q.Search + "%"
		base = base.Where("title LIKE ? OR body LIKE ?", like, like)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, wrapError(err, "count posts")
	}

	posts := []models.Post{}
	err := base.Order("pinned DESC").Order("created_at DESC").
		Offset(q.Offset()).Limit(q.PageSize).
		Find(&posts).Error
	if err != nil {
		return nil, 0, wrapError(err, "list posts")
	}
	return posts, total, nil
}

func (s *Store) UpdatePost(ctx context.Context, p *models.Post) error {
	p.UpdatedAt = time.Now()
	res := s.conn(ctx).Model(&models.Post{}).Where("kind = ? AND id = ?", p.Kind, p.ID).
		Select("title", "body", "body_format", "category", "pinned", "attachments", "image_key", "image_url", "updated_at").
		Updates(p)
	if res.Error != nil {
		return wrapError(res.Error, "update post")
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePost(ctx context.Context, kind models.Kind, id string) error {
	res := s.conn(ctx).Where("kind = ? AND id = ?", kind, id).Delete(&models.Post{})
	if res.Error != nil {
		return wrapError(res.Error, "delete post")
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) IncrementViews(ctx context.Context, kind models.Kind, id string) error {
	res := s.conn(ctx).Model(&models.Post{}).
		Where("kind = ? AND id = ?", kind, id).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		return wrapError(res.Error, "increment views")
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountPosts(ctx context.Context, kind models.Kind) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Post{}).Where("kind = ?", kind).Count(&n).Error
	return n, wrapError(err, "count posts")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// AttachmentInUse searches the JSON attachments column for the encoded key.
func (s *Store) AttachmentInUse(ctx context.Context, key, exceptID string) (bool, error) {
	like := `%"key":"` + likeEscaper.Replace(key) + `"%`
	var n int64
	err := s.conn(ctx).Model(&models.Post{}).
		Where("id <> ? AND attachments LIKE ?", exceptID, like).
		Count(&n).Error
	if err != nil {
		return false, wrapError(err, "attachment in use")
	}
	return n > 0, nil
}
