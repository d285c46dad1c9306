package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/cppla/eduboard/models"
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	u.Stamp(time.Now())
	return insertOne(ctx, s.col(ColUsers), u)
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	return findOne[models.User](ctx, s.col(ColUsers), byID(id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, s.col(ColUsers), bson.D{{Key: "email", Value: email}})
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return findOne[models.User](ctx, s.col(ColUsers), bson.D{{Key: "phone", Value: phone}})
}

func (s *Store) GetUserByProvider(ctx context.Context, provider, providerID string) (*models.User, error) {
	return findOne[models.User](ctx, s.col(ColUsers), bson.D{
		{Key: "provider", Value: provider},
		{Key: "provider_id", Value: providerID},
	})
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}
	return findMany[models.User](ctx, s.col(ColUsers), filter)
}

func (s *Store) ListUsers(ctx context.Context, pageNum, pageSize int) ([]models.User, int64, error) {
	col := s.col(ColUsers)
	total, err := col.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, wrapError(err, "count users")
	}
	users, err := findMany[models.User](ctx, col, bson.D{}, page(pageNum, pageSize, bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now()
	return replaceByID(ctx, s.col(ColUsers), u.ID, u)
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.col(ColUsers).CountDocuments(ctx, bson.D{})
	return n, wrapError(err, "count users")
}
