package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/movian/movian-api/internal/config"
	"github.com/movian/movian-api/internal/observability"
	"github.com/movian/movian-api/internal/repository"
)

// OpenMongo connects and pings the document store used when STORE_DRIVER=mongo.
func OpenMongo(ctx context.Context, cfg *config.Config) (*mongo.Client, *mongo.Database, error) {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(ctx, "open_mongo", time.Since(start))
	}()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI).SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		observability.RecordDatabaseStartupEvent(ctx, "open_mongo", "error")
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		observability.RecordDatabaseStartupEvent(ctx, "open_mongo", "error")
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	observability.RecordDatabaseStartupEvent(ctx, "open_mongo", "success")
	return client, client.Database(cfg.MongoDatabase), nil
}

// EnsureMongoIndexes is the document-store counterpart of Migrate.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	unique := func(field string) mongo.IndexModel {
		return mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}, Options: options.Index().SetUnique(true)}
	}
	users := []mongo.IndexModel{
		unique("email"),
		unique("username"),
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	if _, err := db.Collection(repository.MongoUsersCollection).Indexes().CreateMany(ctx, users); err != nil {
		observability.RecordDatabaseStartupEvent(ctx, "migrate_mongo", "error")
		return fmt.Errorf("user indexes: %w", err)
	}
	pending := []mongo.IndexModel{
		unique("email"),
		unique("token"),
		// Mongo removes expired pending registrations on its own.
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	}
	if _, err := db.Collection(repository.MongoPendingCollection).Indexes().CreateMany(ctx, pending); err != nil {
		observability.RecordDatabaseStartupEvent(ctx, "migrate_mongo", "error")
		return fmt.Errorf("pending indexes: %w", err)
	}
	observability.RecordDatabaseStartupEvent(ctx, "migrate_mongo", "success")
	return nil
}
