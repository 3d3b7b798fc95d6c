package db

import (
	"database/sql"
	"fmt"
	"time"

	"payflow-be/internal/config"
	"payflow-be/internal/logger"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// InitDB opens the order database and exits the process when it is not
// reachable.
func InitDB(cfg *config.Config) *sql.DB {
	db, err := NewDatabase(cfg)
	if err != nil {
		logger.L().Fatal("database unavailable", zap.Error(err))
	}

	logger.L().Info("database connection established",
		zap.String("host", cfg.DBHost),
		zap.String("name", cfg.DBName),
	)
	return db
}

func NewDatabase(cfg *config.Config) (*sql.DB, error) {
	return newDatabaseWithDriver(cfg, "postgres")
}

func newDatabaseWithDriver(cfg *config.Config, driver string) (*sql.DB, error) {
	db, err := sql.Open(driver, buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}

	// webhook and redirect handlers hold a connection for the whole
	// read-check-save sequence of one order
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	return db, nil
}

func buildDSN(cfg *config.Config) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)
}
