package sqlite

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/stocktrail/stocktrail/internal/adapters/sqlite/gormsqlite"
	"github.com/stocktrail/stocktrail/internal/core/domain"
	"github.com/stocktrail/stocktrail/migrations"
)

func openTestDB(t *testing.T) *gormsqlite.DB {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	file := filepath.Join(t.TempDir(), "test.sqlite")
	db, err := gormsqlite.Open(file, log)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("writer sql db: %v", err)
	}
	if err := migrations.Up(context.Background(), sqlDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// Items carry a created_by foreign key, so mutations need a user row.
	_, err = sqlDB.ExecContext(context.Background(),
		`INSERT INTO users (email, username, password_hash, role, active, created_at, updated_at)
		 VALUES ('root@x.com', 'root', 'x', 'admin', 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	if err != nil {
		t.Fatalf("seed actor user: %v", err)
	}

	return db
}

func testActor() domain.Actor {
	return domain.Actor{ID: 1, Name: "root"}
}

func widgetDraft() domain.ItemDraft {
	return domain.ItemDraft{
		Name:        "Widget",
		SKU:         "W1",
		Description: "a widget",
		Quantity:    5,
		UnitPrice:   2.5,
		Category:    "tools",
		Location:    "shelf-a",
	}
}

func countRows(t *testing.T, db *gormsqlite.DB, model any) int64 {
	t.Helper()
	var n int64
	err := db.ReadTX(context.Background(), func(tx *gormsqlite.Tx) error {
		return tx.Model(model).Count(&n).Error
	})
	if err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	sqlDB, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("writer sql db: %v", err)
	}
	if err := migrations.Up(context.Background(), sqlDB); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
