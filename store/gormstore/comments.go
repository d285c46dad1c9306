package gormstore

import (
	"context"
	"time"

	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/store"
)

func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	return wrapError(s.conn(ctx).Create(c).Error, "create comment")
}

func (s *Store) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	var c models.Comment
	if err := s.conn(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, wrapError(err, "get comment")
	}
	return &c, nil
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	if err := s.conn(ctx).Where("post_id = ?", postID).Order("created_at ASC").Find(&comments).Error; err != nil {
		return nil, wrapError(err, "list comments")
	}
	return comments, nil
}

func (s *Store) UpdateComment(ctx context.Context, c *models.Comment) error {
	c.UpdatedAt = time.Now()
	res := s.conn(ctx).Model(&models.Comment{}).Where("id = ?", c.ID).Updates(map[string]interface{}{"body": c.Body, "updated_at": c.UpdatedAt})
	if res.Error != nil {
		return wrapError(res.Error, "update comment")
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	res := s.conn(ctx).Where("id = ?", id).Delete(&models.Comment{})
	if res.Error != nil {
		return wrapError(res.Error, "delete comment")
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteCommentsByPost(ctx context.Context, postID string) error {
	return wrapError(s.conn(ctx).Where("post_id = ?", postID).Delete(&models.Comment{}).Error, "delete comments")
}

func (s *Store) CountComments(ctx context.Context) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Comment{}).Count(&n).Error
	return n, wrapError(err, "count comments")
}
