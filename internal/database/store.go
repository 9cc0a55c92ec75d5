package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/movian/movian-api/internal/config"
	"github.com/movian/movian-api/internal/health"
	"github.com/movian/movian-api/internal/repository"
)

// Store is the opened persistence backend. Exactly one of SQL or Mongo is set.
type Store struct {
	Driver      string
	SQL         *gorm.DB
	MongoClient *mongo.Client
	Mongo       *mongo.Database
}

// OpenStore connects the backend chosen by STORE_DRIVER. With migrate set the
// schema (or the Mongo indexes) is brought up to date before returning.
func OpenStore(ctx context.Context, cfg *config.Config, migrate bool) (*Store, error) {
	if cfg.StoreDriver == DriverMongo {
		client, db, err := OpenMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := EnsureMongoIndexes(ctx, db); err != nil {
				_ = client.Disconnect(context.Background())
				return nil, err
			}
		}
		return &Store{Driver: DriverMongo, MongoClient: client, Mongo: db}, nil
	}

	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := Migrate(db); err != nil {
			closeSQL(db)
			return nil, err
		}
	}
	return &Store{Driver: cfg.StoreDriver, SQL: db}, nil
}

// Migrate applies the schema for whichever backend is open.
func (s *Store) Migrate(ctx context.Context) error {
	if s.Mongo != nil {
		return EnsureMongoIndexes(ctx, s.Mongo)
	}
	return Migrate(s.SQL)
}

func (s *Store) Users() repository.UserRepository {
	if s.Mongo != nil {
		return repository.NewMongoUserRepository(s.Mongo)
	}
	return repository.NewUserRepository(s.SQL)
}

func (s *Store) Pending() repository.PendingVerificationRepository {
	if s.Mongo != nil {
		return repository.NewMongoPendingVerificationRepository(s.Mongo)
	}
	return repository.NewPendingVerificationRepository(s.SQL)
}

func (s *Store) Checker() health.Checker {
	if s.MongoClient != nil {
		return health.NewMongoChecker(s.MongoClient)
	}
	return health.NewDBChecker(s.SQL)
}

func (s *Store) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.MongoClient != nil {
		errs = append(errs, s.MongoClient.Disconnect(ctx))
	}
	if s.SQL != nil {
		if sqlDB, err := s.SQL.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

func closeSQL(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
