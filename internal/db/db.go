package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"amala-joint/store-portal-backend/internal/config"
	"amala-joint/store-portal-backend/internal/stores"
	"amala-joint/store-portal-backend/internal/verification"
)

// Connect opens the postgres pool. The gorm handle drives the lifecycle
// repositories; the sqlx handle wraps the same pool for the verification
// engine's hand-written transactional SQL.
func Connect(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, *sqlx.DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("db: open postgres: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("db: unwrap pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, nil, fmt.Errorf("db: ping: %w", err)
	}

	log.Info("database connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.DBName))

	return gdb, sqlx.NewDb(sqlDB, "postgres"), nil
}

// Migrate applies the schema. AutoMigrate covers tables and plain indexes;
// the partial unique index that backs the duplicate guard needs raw SQL
// because it only spans non-archived rows.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&stores.Store{},
		&verification.VerificationRequest{},
		&verification.Suppression{},
	); err != nil {
		return fmt.Errorf("db: automigrate: %w", err)
	}

	if err := gdb.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_stores_active_name_location
		ON stores (name_key, location_key) WHERE status <> 'archived'`).Error; err != nil {
		return fmt.Errorf("db: create partial unique index: %w", err)
	}
	return nil
}
