package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/cppla/eduboard/models"
)

func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	c.Stamp(time.Now())
	return insertOne(ctx, s.col(ColComments), c)
}

func (s *Store) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	return findOne[models.Comment](ctx, s.col(ColComments), byID(id))
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	filter := bson.D{{Key: "post_id", Value: postID}}
	return findMany[models.Comment](ctx, s.col(ColComments), filter, page(1, 0, bson.D{{Key: "created_at", Value: 1}}))
}

func (s *Store) UpdateComment(ctx context.Context, c *models.Comment) error {
	c.UpdatedAt = time.Now()
	return replaceByID(ctx, s.col(ColComments), c.ID, c)
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColComments), id)
}

func (s *Store) DeleteCommentsByPost(ctx context.Context, postID string) error {
	_, err := s.col(ColComments).DeleteMany(ctx, bson.D{{Key: "post_id", Value: postID}})
	return wrapError(err, "delete comments")
}

func (s *Store) CountComments(ctx context.Context) (int64, error) {
	n, err := s.col(ColComments).CountDocuments(ctx, bson.D{})
	return n, wrapError(err, "count comments")
}
