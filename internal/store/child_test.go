package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/giftlink/internal/model"
)

func TestChildCreateFamily(t *testing.T) {
	db := setupTestDB(t)
	cs := NewChildStore(db)

	family, children, err := cs.CreateFamily(context.Background(), "101", "two kids", []NewChild{
		{DisplayCode: "101A", Age: 6, Wishes: "bike"},
		{DisplayCode: "101B", Age: 9},
	})
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	if family.DisplayNumber != "101" {
		t.Errorf("display number = %q, want %q", family.DisplayNumber, "101")
	}
	if len(children) != 2 {
		t.Fatalf("children = %d, want 2", len(children))
	}
	for _, c := range children {
		if c.Status != model.ChildAvailable {
			t.Errorf("child %s status = %q, want available", c.DisplayCode, c.Status)
		}
		if c.FamilyID != family.ID {
			t.Errorf("child %s family = %d, want %d", c.DisplayCode, c.FamilyID, family.ID)
		}
	}
}

func TestChildCreateFamilyDuplicateCodeRollsBack(t *testing.T) {
	db := setupTestDB(t)
	cs := NewChildStore(db)

	_, _, err := cs.CreateFamily(context.Background(), "101", "", []NewChild{
		{DisplayCode: "101A"},
		{DisplayCode: "101A"},
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}

	var count int
	db.QueryRow(`SELECT COUNT(*) FROM families`).Scan(&count)
	if count != 0 {
		t.Errorf("families = %d, want 0 after rollback", count)
	}
}

func TestChildGetByIDs(t *testing.T) {
	db := setupTestDB(t)
	ids := seedFamily(t, db, "101", "101A", "101B")
	cs := NewChildStore(db)

	got, err := cs.GetByIDs(context.Background(), []int64{ids["101A"], ids["101B"], 9999})
	if err != nil {
		t.Fatalf("get by ids: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d children, want 2", len(got))
	}
	if got[ids["101B"]].DisplayCode != "101B" {
		t.Errorf("display code = %q, want 101B", got[ids["101B"]].DisplayCode)
	}
}

func TestChildGetNotFound(t *testing.T) {
	db := setupTestDB(t)
	cs := NewChildStore(db)

	c, err := cs.GetByID(context.Background(), 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c != nil {
		t.Error("expected nil for missing child")
	}
}
