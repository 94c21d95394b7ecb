// Package dbtest opens throwaway SQLite databases migrated with the full
// model set and seeds the catalog and stock fixtures shared by package tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/leafshop/leafshop-backend/pkg/db"
	"github.com/leafshop/leafshop-backend/pkg/db/models"
)

// Open returns an in-memory database private to the test. The pool is pinned
// to one connection so transactions observe their own writes.
func Open(t testing.TB, prefix string) *gorm.DB {
	t.Helper()
	dsn := "file:" + prefix + "_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// OpenClient is Open wrapped in a db.Client.
func OpenClient(t testing.TB, prefix string) *db.Client {
	t.Helper()
	return db.NewFromConn(Open(t, prefix))
}
