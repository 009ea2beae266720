package postgres

import (
	"order-ledger/internal/config"
	"order-ledger/internal/repository/sqlstore"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewPostgresFromConfig(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := sqlstore.Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}
