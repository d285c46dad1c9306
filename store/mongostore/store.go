// Package mongostore implements store.Store on MongoDB.
//
// Each post kind lives in its own collection; comments share one collection
// keyed by post_id.
package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/store"
)

const (
	ColUsers    = "users"
	ColComments = "comments"
	ColContacts = "contacts"
)

var postCollections = map[models.Kind]string{
	models.KindNotice:   "notices",
	models.KindJob:      "jobs",
	models.KindBoard:    "board_posts",
	models.KindMaterial: "materials",
	models.KindGallery:  "gallery",
}

// Store implements store.Store with mongo-driver v2.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
}

var _ store.Store = (*Store)(nil)

// New connects, pings and ensures indexes.
func New(uri, dbName string, logger *zap.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "mongostore: connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "mongostore: ping")
	}

	s := &Store{client: client, db: client.Database(dbName), log: logger}
	if err := s.ensureIndexes(ctx); err != nil {
		logger.Warn("mongostore: ensure indexes failed", zap.Error(err))
	}
	return s, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *Store) posts(kind models.Kind) (*mongo.Collection, error) {
	name, ok := postCollections[kind]
	if !ok {
		return nil, errors.Errorf("mongostore: unknown post kind %q", kind)
	}
	return s.col(name), nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}

	indexes := []idx{
		{ColUsers, bson.D{{Key: "email", Value: 1}}, true},
		{ColUsers, bson.D{{Key: "phone", Value: 1}}, true},
		{ColUsers, bson.D{{Key: "provider", Value: 1}, {Key: "provider_id", Value: 1}}, false},
		{ColComments, bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}}, false},
		{ColContacts, bson.D{{Key: "created_at", Value: -1}}, false},
	}
	for _, name := range postCollections {
		indexes = append(indexes, idx{name, bson.D{{Key: "pinned", Value: -1}, {Key: "created_at", Value: -1}}, false})
	}

	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		if i.unique {
			// email/phone are omitted for OAuth accounts
			model.Options = options.Index().SetUnique(true).SetSparse(true)
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return errors.Wrapf(err, "create index on %s", i.col)
		}
	}
	return nil
}
