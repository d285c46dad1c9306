package gormstore

import (
	"context"

	"github.com/cppla/eduboard/models"
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return wrapError(s.conn(ctx).Create(u).Error, "create user")
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, wrapError(err, "get user")
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, wrapError(err, "get user by email")
	}
	return &u, nil
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Where("phone = ?", phone).First(&u).Error; err != nil {
		return nil, wrapError(err, "get user by phone")
	}
	return &u, nil
}

func (s *Store) GetUserByProvider(ctx context.Context, provider, providerID string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Where("provider = ? AND provider_id = ?", provider, providerID).First(&u).Error; err != nil {
		return nil, wrapError(err, "get user by provider")
	}
	return &u, nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := s.conn(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, wrapError(err, "get users")
	}
	return users, nil
}

func (s *Store) ListUsers(ctx context.Context, pageNum, pageSize int) ([]models.User, int64, error) {
	var total int64
	if err := s.conn(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, wrapError(err, "count users")
	}
	users := []models.User{}
	err := s.conn(ctx).Order("created_at DESC").
		Offset(offset(pageNum, pageSize)).Limit(pageSize).
		Find(&users).Error
	if err != nil {
		return nil, 0, wrapError(err, "list users")
	}
	return users, total, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	res := s.conn(ctx).Model(u).Select("name", "email", "phone", "avatar_url", "role", "status", "password_hash", "updated_at").Updates(u)
	if res.Error != nil {
		return wrapError(res.Error, "update user")
	}
	if res.RowsAffected == 0 {
		return wrapError(s.conn(ctx).Select("id").Where("id = ?", u.ID).First(&models.User{}).Error, "update user")
	}
	return nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.User{}).Count(&n).Error
	return n, wrapError(err, "count users")
}
