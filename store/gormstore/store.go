// Package gormstore implements store.Store on MySQL through gorm.
package gormstore

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/store"
)

// Store keeps every post kind in one posts table discriminated by kind.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Models lists the tables managed by this backend.
func Models() []interface{} {
	return []interface{}{&models.User{}, &models.Post{}, &models.Comment{}, &models.Contact{}}
}

// Migrate creates missing tables and columns.
func (s *Store) Migrate() error {
	return pkgerrors.Wrap(s.db.AutoMigrate(Models()...), "gormstore: migrate")
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func wrapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.ErrDuplicate
	}
	return pkgerrors.Wrap(err, "gormstore: "+op)
}

func offset(pageNum, pageSize int) int {
	if pageNum < 1 {
		return 0
	}
	return (pageNum - 1) * pageSize
}
