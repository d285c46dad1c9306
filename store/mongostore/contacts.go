package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/cppla/eduboard/models"
)

func (s *Store) CreateContact(ctx context.Context, c *models.Contact) error {
	c.Stamp(time.Now())
	return insertOne(ctx, s.col(ColContacts), c)
}

func (s *Store) ListContacts(ctx context.Context, pageNum, pageSize int) ([]models.Contact, int64, error) {
	col := s.col(ColContacts)
	total, err := col.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, wrapError(err, "count contacts")
	}
	items, err := findMany[models.Contact](ctx, col, bson.D{}, page(pageNum, pageSize, bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
