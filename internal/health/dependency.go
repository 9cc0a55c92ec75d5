package health

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/gorm"
)

// NewDBChecker returns nil for a nil db so callers can pass optional stores.
func NewDBChecker(db *gorm.DB) Checker {
	if db == nil {
		return nil
	}
	return CheckerFunc{CheckName: "db", Fn: func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}}
}

func NewMongoChecker(client *mongo.Client) Checker {
	if client == nil {
		return nil
	}
	return CheckerFunc{CheckName: "mongo", Fn: func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}}
}

func NewRedisChecker(client redis.UniversalClient) Checker {
	if client == nil {
		return nil
	}
	return CheckerFunc{CheckName: "redis", Fn: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

