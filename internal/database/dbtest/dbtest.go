// Package dbtest opens isolated in-memory stores for tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pathakanu/pocketlog/internal/database"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a migrated SQLite memory database private to the calling test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	db := OpenRaw(t)
	if err := database.Migrate(db, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// OpenRaw returns an unmigrated SQLite memory database private to the calling test.
func OpenRaw(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_fk=1", name, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite memory: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}
