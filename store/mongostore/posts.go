package mongostore

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/store"
)

func (s *Store) CreatePost(ctx context.Context, p *models.Post) error {
	col, err := s.posts(p.Kind)
	if err != nil {
		return err
	}
	p.Stamp(time.Now())
	return insertOne(ctx, col, p)
}

func (s *Store) GetPost(ctx context.Context, kind models.Kind, id string) (*models.Post, error) {
	col, err := s.posts(kind)
	if err != nil {
		return nil, err
	}
	return findOne[models.Post](ctx, col, byID(id))
}

func (s *Store) ListPosts(ctx context.Context, q store.PostQuery) ([]models.Post, int64, error) {
	col, err := s.posts(q.Kind)
	if err != nil {
		return nil, 0, err
	}

	filter := bson.D{}
	if q.AuthorID != "" {
		filter = append(filter, bson.E{Key: "author_id", Value: q.AuthorID})
	}
	if q.Search != "" {
		re := bson.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: re}},
			bson.D{{Key: "body", Value: re}},
		}})
	}

	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, wrapError(err, "count posts")
	}
	sort := bson.D{{Key: "pinned", Value: -1}, {Key: "created_at", Value: -1}}
	posts, err := findMany[models.Post](ctx, col, filter, page(q.Page, q.PageSize, sort))
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (s *Store) UpdatePost(ctx context.Context, p *models.Post) error {
	col, err := s.posts(p.Kind)
	if err != nil {
		return err
	}
	p.UpdatedAt = time.Now()
	// views are owned by IncrementViews; never overwrite them from a stale copy
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "title", Value: p.Title},
		{Key: "body", Value: p.Body},
		{Key: "body_format", Value: p.BodyFormat},
		{Key: "category", Value: p.Category},
		{Key: "pinned", Value: p.Pinned},
		{Key: "attachments", Value: p.Attachments},
		{Key: "image_key", Value: p.ImageKey},
		{Key: "image_url", Value: p.ImageURL},
		{Key: "updated_at", Value: p.UpdatedAt},
	}}}
	res, err := col.UpdateOne(ctx, byID(p.ID), update)
	if err != nil {
		return wrapError(err, "update post")
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePost(ctx context.Context, kind models.Kind, id string) error {
	col, err := s.posts(kind)
	if err != nil {
		return err
	}
	return deleteByID(ctx, col, id)
}

func (s *Store) IncrementViews(ctx context.Context, kind models.Kind, id string) error {
	col, err := s.posts(kind)
	if err != nil {
		return err
	}
	res, err := col.UpdateOne(ctx, byID(id), bson.D{{Key: "$inc", Value: bson.D{{Key: "views", Value: 1}}}})
	if err != nil {
		return wrapError(err, "increment views")
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountPosts(ctx context.Context, kind models.Kind) (int64, error) {
	col, err := s.posts(kind)
	if err != nil {
		return 0, err
	}
	n, err := col.CountDocuments(ctx, bson.D{})
	return n, wrapError(err, "count posts")
}

func (s *Store) AttachmentInUse(ctx context.Context, key, exceptID string) (bool, error) {
	filter := bson.D{
		{Key: "attachments.key", Value: key},
		{Key: "_id", Value: bson.D{{Key: "$ne", Value: exceptID}}},
	}
	for _, name := range postCollections {
		n, err := s.col(name).CountDocuments(ctx, filter)
		if err != nil {
			return false, wrapError(err, "attachment in use")
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}
