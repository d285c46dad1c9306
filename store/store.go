// Package store defines the persistence contract shared by the MongoDB, MySQL
// and in-memory backends.
package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cppla/eduboard/models"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: duplicate record")
)

// PostQuery filters a post listing. Results are ordered pinned first, then newest.
type PostQuery struct {
	Kind     models.Kind
	Search   string
	AuthorID string
	Page     int
	PageSize int
}

func (q PostQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	GetUserByProvider(ctx context.Context, provider, providerID string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ListUsers(ctx context.Context, page, pageSize int) ([]models.User, int64, error)
	UpdateUser(ctx context.Context, u *models.User) error
	CountUsers(ctx context.Context) (int64, error)
}

type PostStore interface {
	CreatePost(ctx context.Context, p *models.Post) error
	GetPost(ctx context.Context, kind models.Kind, id string) (*models.Post, error)
	ListPosts(ctx context.Context, q PostQuery) ([]models.Post, int64, error)
	UpdatePost(ctx context.Context, p *models.Post) error
	DeletePost(ctx context.Context, kind models.Kind, id string) error
	// IncrementViews atomically adds one to the view counter.
	IncrementViews(ctx context.Context, kind models.Kind, id string) error
	CountPosts(ctx context.Context, kind models.Kind) (int64, error)
	// AttachmentInUse reports whether a post other than exceptID lists the object key.
	AttachmentInUse(ctx context.Context, key, exceptID string) (bool, error)
}

type CommentStore interface {
	CreateComment(ctx context.Context, c *models.Comment) error
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	ListComments(ctx context.Context, postID string) ([]models.Comment, error)
	UpdateComment(ctx context.Context, c *models.Comment) error
	DeleteComment(ctx context.Context, id string) error
	DeleteCommentsByPost(ctx context.Context, postID string) error
	CountComments(ctx context.Context) (int64, error)
}

type ContactStore interface {
	CreateContact(ctx context.Context, c *models.Contact) error
	ListContacts(ctx context.Context, page, pageSize int) ([]models.Contact, int64, error)
}

// Store is the full document database used by the service.
type Store interface {
	UserStore
	PostStore
	CommentStore
	ContactStore
	Close() error
}
