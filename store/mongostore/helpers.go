package mongostore

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/cppla/eduboard/store"
)

// wrapError maps driver errors onto the store sentinels.
func wrapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	return pkgerrors.Wrap(err, "mongostore: "+op)
}

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter bson.D) (*T, error) {
	var result T
	if err := col.FindOne(ctx, filter).Decode(&result); err != nil {
		return nil, wrapError(err, "find "+col.Name())
	}
	return &result, nil
}

func findMany[T any](ctx context.Context, col *mongo.Collection, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, wrapError(err, "find "+col.Name())
	}
	defer cursor.Close(ctx)

	results := []T{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, wrapError(err, "decode "+col.Name())
	}
	return results, nil
}

func insertOne(ctx context.Context, col *mongo.Collection, doc interface{}) error {
	_, err := col.InsertOne(ctx, doc)
	return wrapError(err, "insert "+col.Name())
}

func replaceByID(ctx context.Context, col *mongo.Collection, id string, doc interface{}) error {
	res, err := col.ReplaceOne(ctx, byID(id), doc)
	if err != nil {
		return wrapError(err, "replace "+col.Name())
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func deleteByID(ctx context.Context, col *mongo.Collection, id string) error {
	res, err := col.DeleteOne(ctx, byID(id))
	if err != nil {
		return wrapError(err, "delete "+col.Name())
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// page returns find options for a 1-based page.
func page(pageNum, pageSize int, sort bson.D) *options.FindOptionsBuilder {
	if pageNum < 1 {
		pageNum = 1
	}
	opts := options.Find().SetSort(sort)
	if pageSize > 0 {
		opts.SetSkip(int64((pageNum - 1) * pageSize)).SetLimit(int64(pageSize))
	}
	return opts
}
