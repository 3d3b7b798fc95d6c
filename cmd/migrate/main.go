package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"payflow-be/internal/config"
	"payflow-be/internal/db"
	"payflow-be/internal/logger"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("APP_ENV"))
	defer logger.Sync()

	mode := flag.String("mode", "up", "migration mode: up, down or status")
	dir := flag.String("dir", "./migrations", "directory holding *.sql migrations")
	flag.Parse()

	database, err := openDB()
	if err != nil {
		logger.L().Fatal("failed to connect db", zap.Error(err))
	}
	defer database.Close()

	if err := run(database, *mode, *dir); err != nil {
		logger.L().Fatal("migration failed", zap.String("mode", *mode), zap.Error(err))
	}
}

// openDB prefers DB_URL and falls back to the DB_* variables the server uses.
func openDB() (*sql.DB, error) {
	if dbURL := os.Getenv("DB_URL"); dbURL != "" {
		return sql.Open("postgres", dbURL)
	}
	return db.NewDatabase(config.LoadConfig())
}

func run(db *sql.DB, mode, migrationsDir string) error {
	// Ensure schema_migrations table exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	sort.Strings(files)

	switch mode {
	case "up":
		return runMigrationsUp(db, files)
	case "down":
		return runMigrationsDown(db, files)
	case "status":
		return runStatus(db, files)
	default:
		return fmt.Errorf("unknown mode: %s (use 'up', 'down' or 'status')", mode)
	}
}

func isApplied(db *sql.DB, version string) (bool, error) {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return exists, nil
}

func runMigrationsUp(db *sql.DB, files []string) error {
	log := logger.L()

	for _, file := range files {
		version := filepath.Base(file)

		applied, err := isApplied(db, version)
		if err != nil {
			return err
		}
		if applied {
			log.Debug("skipping applied migration", zap.String("version", version))
			continue
		}

		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		upSQL := extractMigrationPart(string(content), "Up")
		log.Info("applying migration", zap.String("version", version))

		if _, err := db.Exec(upSQL); err != nil {
			return fmt.Errorf("migration failed (%s): %w", version, err)
		}

		_, err = db.Exec(`INSERT INTO schema_migrations (version) VALUES ($1)`, version)
		if err != nil {
			return fmt.Errorf("failed to record migration version: %w", err)
		}
	}
	log.Info("all new migrations applied")
	return nil
}

func runMigrationsDown(db *sql.DB, files []string) error {
	log := logger.L()

	// Find the latest applied migration
	var lastVersion string
	err := db.QueryRow(`SELECT version FROM schema_migrations ORDER BY applied_at DESC, version DESC LIMIT 1`).Scan(&lastVersion)
	if errors.Is(err, sql.ErrNoRows) {
		log.Warn("no migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get last applied migration: %w", err)
	}

	filePath := ""
	for _, f := range files {
		if filepath.Base(f) == lastVersion {
			filePath = f
			break
		}
	}
	if filePath == "" {
		return fmt.Errorf("migration file not found for version: %s", lastVersion)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	downSQL := extractMigrationPart(string(content), "Down")
	log.Info("rolling back migration", zap.String("version", lastVersion))

	if _, err := db.Exec(downSQL); err != nil {
		return fmt.Errorf("rollback failed (%s): %w", filePath, err)
	}

	_, err = db.Exec(`DELETE FROM schema_migrations WHERE version = $1`, lastVersion)
	if err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	log.Info("rollback successful", zap.String("version", lastVersion))
	return nil
}

func runStatus(db *sql.DB, files []string) error {
	for _, file := range files {
		version := filepath.Base(file)
		applied, err := isApplied(db, version)
		if err != nil {
			return err
		}
		logger.L().Info("migration", zap.String("version", version), zap.Bool("applied", applied))
	}
	return nil
}

func extractMigrationPart(content string, section string) string {
	lines := strings.Split(content, "\n")
	var part strings.Builder
	var inPart bool

	for _, line := range lines {
		if strings.Contains(line, "-- +migrate "+section) {
			inPart = true
			continue
		}
		if inPart && strings.HasPrefix(line, "-- +migrate") {
			break
		}
		if inPart {
			part.WriteString(line + "\n")
		}
	}
	return part.String()
}
