package gormstore

import (
	"context"

	"github.com/cppla/eduboard/models"
)

func (s *Store) CreateContact(ctx context.Context, c *models.Contact) error {
	return wrapError(s.conn(ctx).Create(c).Error, "create contact")
}

func (s *Store) ListContacts(ctx context.Context, pageNum, pageSize int) ([]models.Contact, int64, error) {
	var total int64
	if err := s.conn(ctx).Model(&models.Contact{}).Count(&total).Error; err != nil {
		return nil, 0, wrapError(err, "count contacts")
	}
	items := []models.Contact{}
	err := s.conn(ctx).Order("created_at DESC").Offset(offset(pageNum, pageSize)).Limit(pageSize).Find(&items).Error
	if err != nil {
		return nil, 0, wrapError(err, "list contacts")
	}
	return items, total, nil
}
