package db

import (
	"errors"

	"github.com/snowdenHM/bill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to postgres using the configured DSN.
func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dsn := cfg.DatabaseDSN
	if dsn == "" {
		return nil, errors.New("missing_database_dsn")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	log.Named("db").Info("database connected")
	return conn, nil
}

var Module = fx.Module("db",
	fx.Provide(Open),
)
