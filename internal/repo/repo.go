package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/medisync/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{})
}

func (r *GormRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
