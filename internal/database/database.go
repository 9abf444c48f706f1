package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pathakanu/pocketlog/internal/config"
	"github.com/pathakanu/pocketlog/internal/model"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SchemaVersion is bumped whenever the record tables change shape.
// Opening a store with an older version drops and recreates them.
const SchemaVersion = 1

// ErrSchemaTooNew is returned when the store was written by a newer build.
var ErrSchemaTooNew = errors.New("database schema is newer than this build")

// recordTables are recreated on a schema version bump.
var recordTables = []any{
	&model.Expense{},
	&model.ToDo{},
	&model.ScheduledTimer{},
	&model.Notification{},
}

// New creates the process-wide GORM handle.
// When cfg.DatabaseURL is provided PostgreSQL is used, otherwise SQLite at cfg.SQLitePath.
func New(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	if cfg.DatabaseURL != "" {
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormConfig)
	} else {
		db, err = gorm.Open(sqlite.Open(sqliteDSN(cfg.SQLitePath)), gormConfig)
	}
	if err != nil {
		return nil, err
	}

	if Backend(db) == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db, log); err != nil {
		_ = Close(db)
		return nil, err
	}

	logBackend(db, cfg, log)
	return db, nil
}

// Migrate creates the tables on first use and applies the forward-only version gate.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	if err := db.AutoMigrate(&model.SchemaMeta{}); err != nil {
		return fmt.Errorf("migrate schema_meta: %w", err)
	}

	var meta model.SchemaMeta
	err := db.Order("id").Limit(1).Find(&meta).Error
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	switch {
	case meta.ID == 0:
		meta = model.SchemaMeta{ID: 1, Version: SchemaVersion}
		if err := db.Create(&meta).Error; err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	case meta.Version > SchemaVersion:
		return fmt.Errorf("%w: stored %d, supported %d", ErrSchemaTooNew, meta.Version, SchemaVersion)
	case meta.Version < SchemaVersion:
		log.Warn("database: schema upgrade recreates record tables",
			zap.Int("from", meta.Version), zap.Int("to", SchemaVersion))
		if err := db.Migrator().DropTable(recordTables...); err != nil {
			return fmt.Errorf("drop record tables: %w", err)
		}
		if err := db.Model(&meta).Update("version", SchemaVersion).Error; err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	}

	if err := db.AutoMigrate(recordTables...); err != nil {
		return fmt.Errorf("migrate record tables: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Backend returns the lower-cased dialect name, e.g. "sqlite" or "postgres".
func Backend(db *gorm.DB) string {
	return strings.ToLower(db.Dialector.Name())
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000"
}

func logBackend(db *gorm.DB, cfg *config.Config, log *zap.Logger) {
	switch dialector := Backend(db); dialector {
	case "postgres":
		log.Info("database: connected to PostgreSQL")
	case "sqlite":
		log.Info("database: using SQLite", zap.String("path", cfg.SQLitePath))
	default:
		log.Info("database: connected", zap.String("dialect", dialector))
	}
}
