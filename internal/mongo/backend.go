// Package mongo implements the MongoDB backend for VENTO using the
// official v2 driver. Products and users live in two collections of one
// database.
package mongo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/vento/pkg/types"
)

const (
	productsCollection = "products"
	usersCollection    = "users"
)

// Backend implements types.Backend on a MongoDB database.
type Backend struct {
	mu     sync.RWMutex
	closed bool
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger

	products *productStore
	users    *userStore
}

var _ types.Backend = (*Backend)(nil)

// Open connects to cfg.MongoURI, verifies the connection, and ensures the
// indexes exist.
func Open(ctx context.Context, cfg types.Config, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MongoURI == "" {
		return nil, types.ErrMongoURIEmpty
	}

	opts := options.Client().ApplyURI(cfg.MongoURI)
	if cfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MongoMaxPoolSize)
	}
	if cfg.MongoMinPoolSize > 0 {
		opts.SetMinPoolSize(cfg.MongoMinPoolSize)
	}
	timeout := cfg.MongoTimeout
	if timeout <= 0 {
		timeout = types.DefaultMongoTimeout
	}
	opts.SetConnectTimeout(timeout)
	opts.SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := cfg.MongoDatabase
	if dbName == "" {
		dbName = types.DefaultMongoDatabase
	}
	b := &Backend{
		client: client,
		db:     client.Database(dbName),
		log:    logger.Named("mongo"),
	}
	b.products = &productStore{b: b}
	b.users = &userStore{b: b}

	if err := b.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	b.log.Debug("backend attached", zap.String("database", dbName))
	return b, nil
}

func (b *Backend) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		productsCollection: {
			{
				Keys:    bson.D{{Key: "usernameKey", Value: 1}, {Key: "id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		usersCollection: {
			{
				Keys:    bson.D{{Key: "usernameKey", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
	for name, models := range indexes {
		if _, err := b.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

// Name returns types.BackendMongo.
func (b *Backend) Name() string { return types.BackendMongo }

func (b *Backend) Products() types.ProductStore { return b.products }

func (b *Backend) Users() types.UserStore { return b.users }

// Ping checks the primary is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()
	return b.client.Ping(ctx, nil)
}

// Close disconnects the client. Idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return b.client.Disconnect(ctx)
}

// Reset deletes every document in both collections.
func (b *Backend) Reset(ctx context.Context) error {
	for _, name := range []string{productsCollection, usersCollection} {
		if _, err := b.db.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
	}
	return nil
}

func (b *Backend) acquire() (func(), error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, types.ErrBackendClosed
	}
	return b.mu.RUnlock, nil
}

func (b *Backend) productsColl() *mongo.Collection { return b.db.Collection(productsCollection) }

func (b *Backend) usersColl() *mongo.Collection { return b.db.Collection(usersCollection) }
