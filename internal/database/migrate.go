package database

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/movian/movian-api/internal/domain"
	"github.com/movian/movian-api/internal/observability"
)

func Migrate(db *gorm.DB) error {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(context.Background(), "migrate", time.Since(start))
	}()
	if err := db.AutoMigrate(&domain.User{}, &domain.PendingVerification{}); err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "error")
		return err
	}
	observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "success")
	return nil
}
