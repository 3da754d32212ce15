package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPool tunes the client pool. Zero fields keep the defaults below.
type MongoPool struct {
	MaxPoolSize    uint64
	MinPoolSize    uint64
	ConnectTimeout time.Duration
	SelectTimeout  time.Duration
}

var DefaultMongoPool = MongoPool{
	MaxPoolSize:    100,
	MinPoolSize:    10,
	ConnectTimeout: 10 * time.Second,
	SelectTimeout:  5 * time.Second,
}

func (p MongoPool) withDefaults() MongoPool {
	if p.MaxPoolSize == 0 {
		p.MaxPoolSize = DefaultMongoPool.MaxPoolSize
	}
	if p.MinPoolSize == 0 {
		p.MinPoolSize = DefaultMongoPool.MinPoolSize
	}
	p.MinPoolSize = min(p.MinPoolSize, p.MaxPoolSize)
	if p.ConnectTimeout <= 0 {
		p.ConnectTimeout = DefaultMongoPool.ConnectTimeout
	}
	if p.SelectTimeout <= 0 {
		p.SelectTimeout = DefaultMongoPool.SelectTimeout
	}
	return p
}

func clientOptions(uri string, pool MongoPool) *options.ClientOptions {
	pool = pool.withDefaults()
	return options.Client().
		ApplyURI(uri).
		SetAppName("valix-shop").
		SetConnectTimeout(pool.ConnectTimeout).
		SetServerSelectionTimeout(pool.SelectTimeout).
		SetMaxPoolSize(pool.MaxPoolSize).
		SetMinPoolSize(pool.MinPoolSize)
}

// ConnectMongoDB connects, pings and returns the named database.
func ConnectMongoDB(ctx context.Context, uri, database string, pool MongoPool) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, clientOptions(uri, pool))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}
