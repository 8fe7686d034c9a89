package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukerupert/giftlink/internal/database"
	"github.com/dukerupert/giftlink/internal/model"
)

var testNow = time.Date(2026, 12, 1, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// setupFileDB opens a file-backed database so concurrent transactions use
// separate connections.
func setupFileDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "giftlink.db"))
	if err != nil {
		t.Fatalf("open file db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedFamily creates a family and returns its children's ids keyed by display code.
func seedFamily(t *testing.T, db *sql.DB, number string, codes ...string) map[string]int64 {
	t.Helper()
	var children []NewChild
	for _, code := range codes {
		children = append(children, NewChild{DisplayCode: code, Age: 7})
	}
	_, created, err := NewChildStore(db).CreateFamily(context.Background(), number, "", children)
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	ids := make(map[string]int64, len(created))
	for _, c := range created {
		ids[c.DisplayCode] = c.ID
	}
	return ids
}

func childStatus(t *testing.T, db *sql.DB, id int64) model.ChildStatus {
	t.Helper()
	c, err := NewChildStore(db).GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if c == nil {
		t.Fatalf("child %d not found", id)
	}
	return c.Status
}

var testSponsor = model.Sponsor{Name: "Alice", Email: "alice@example.com", Phone: "555-0100", Address: "1 Main St"}
