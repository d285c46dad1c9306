// Package memstore is a process-local store.Store used for development and tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/store"
)

type Store struct {
	mu       sync.RWMutex
	users    map[string]models.User
	posts    map[string]models.Post
	comments map[string]models.Comment
	contacts []models.Contact
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    map[string]models.User{},
		posts:    map[string]models.Post{},
		comments: map[string]models.Comment{},
	}
}

func (s *Store) Close() error { return nil }

func window[T any](items []T, pageNum, pageSize int) []T {
	if pageSize <= 0 {
		return items
	}
	start := 0
	if pageNum > 1 {
		start = (pageNum - 1) * pageSize
	}
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// users

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if u.Email != "" && strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
		if u.Phone != "" && existing.Phone == u.Phone {
			return store.ErrDuplicate
		}
	}
	u.Stamp(time.Now())
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) findUser(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			u := u
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return email != "" && strings.EqualFold(u.Email, email) })
}

func (s *Store) GetUserByPhone(_ context.Context, phone string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return phone != "" && u.Phone == phone })
}

func (s *Store) GetUserByProvider(_ context.Context, provider, providerID string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Provider == provider && u.ProviderID == providerID })
}

func (s *Store) GetUsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) ListUsers(_ context.Context, pageNum, pageSize int) ([]models.User, int64, error) {
	s.mu.RLock()
	all := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	s.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return window(all, pageNum, pageSize), int64(len(all)), nil
}

func (s *Store) UpdateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return store.ErrNotFound
	}
	u.UpdatedAt = time.Now()
	s.users[u.ID] = *u
	return nil
}

func (s *Store) CountUsers(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

// posts

func (s *Store) CreatePost(_ context.Context, p *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Stamp(time.Now())
	s.posts[p.ID] = *p
	return nil
}

func (s *Store) GetPost(_ context.Context, kind models.Kind, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok || p.Kind != kind {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListPosts(_ context.Context, q store.PostQuery) ([]models.Post, int64, error) {
	needle := strings.ToLower(q.Search)
	s.mu.RLock()
	matched := []models.Post{}
	for _, p := range s.posts {
		if p.Kind != q.Kind {
			continue
		}
		if q.AuthorID != "" && p.AuthorID != q.AuthorID {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Title), needle) && !strings.Contains(strings.ToLower(p.Body), needle) {
			continue
		}
		matched = append(matched, p)
	}
	s.mu.RUnlock()
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Pinned != matched[j].Pinned {
			return matched[i].Pinned
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return window(matched, q.Page, q.PageSize), int64(len(matched)), nil
}

func (s *Store) UpdatePost(_ context.Context, p *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.posts[p.ID]
	if !ok || cur.Kind != p.Kind {
		return store.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	p.Views = cur.Views
	p.CreatedAt = cur.CreatedAt
	s.posts[p.ID] = *p
	return nil
}

func (s *Store) DeletePost(_ context.Context, kind models.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[id]; !ok || p.Kind != kind {
		return store.ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *Store) IncrementViews(_ context.Context, kind models.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok || p.Kind != kind {
		return store.ErrNotFound
	}
	p.Views++
	s.posts[id] = p
	return nil
}

func (s *Store) CountPosts(_ context.Context, kind models.Kind) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, p := range s.posts {
		if p.Kind == kind {
			n++
		}
	}
	return n, nil
}

func (s *Store) AttachmentInUse(_ context.Context, key, exceptID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, p := range s.posts {
		if id == exceptID {
			continue
		}
		for _, att := range p.Attachments {
			if att.Key == key {
				return true, nil
			}
		}
	}
	return false, nil
}

// comments

func (s *Store) CreateComment(_ context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Stamp(time.Now())
	s.comments[c.ID] = *c
	return nil
}

func (s *Store) GetComment(_ context.Context, id string) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListComments(_ context.Context, postID string) ([]models.Comment, error) {
	s.mu.RLock()
	out := []models.Comment{}
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateComment(_ context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[c.ID]; !ok {
		return store.ErrNotFound
	}
	c.UpdatedAt = time.Now()
	s.comments[c.ID] = *c
	return nil
}

func (s *Store) DeleteComment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

func (s *Store) DeleteCommentsByPost(_ context.Context, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.comments {
		if c.PostID == postID {
			delete(s.comments, id)
		}
	}
	return nil
}

func (s *Store) CountComments(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.comments)), nil
}

// contacts

func (s *Store) CreateContact(_ context.Context, c *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Stamp(time.Now())
	s.contacts = append(s.contacts, *c)
	return nil
}

func (s *Store) ListContacts(_ context.Context, pageNum, pageSize int) ([]models.Contact, int64, error) {
	s.mu.RLock()
	all := make([]models.Contact, len(s.contacts))
	copy(all, s.contacts)
	s.mu.RUnlock()
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return window(all, pageNum, pageSize), int64(len(all)), nil
}
