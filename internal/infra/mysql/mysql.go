package mysql

import (
	"order-ledger/internal/config"
	"order-ledger/internal/repository/sqlstore"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func NewMySQLFromConfig(cfg *config.Config) (*gorm.DB, error) {
	return Open(cfg.MySQLDSN())
}

// Open connects with dsn and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
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
