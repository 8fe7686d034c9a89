package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/giftlink/internal/model"
)

func newReservation(token string, childIDs ...int64) NewReservation {
	return NewReservation{
		Token:     token,
		Sponsor:   testSponsor,
		ChildIDs:  childIDs,
		CreatedAt: testNow,
		ExpiresAt: testNow.Add(48 * time.Hour),
	}
}

func TestReservationCreate(t *testing.T) {
	db := setupTestDB(t)
	ids := seedFamily(t, db, "101", "101A", "101B")
	rs := NewReservationStore(db)

	r, unavailable, err := rs.Create(context.Background(), newReservation("tok-1", ids["101B"], ids["101A"]))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(unavailable) != 0 {
		t.Fatalf("unavailable = %v, want none", unavailable)
	}
	if r.Status != model.ReservationActive {
		t.Errorf("status = %q, want active", r.Status)
	}

	for _, id := range []int64{ids["101A"], ids["101B"]} {
		c, _ := NewChildStore(db).GetByID(context.Background(), id)
		if c.Status != model.ChildPending {
			t.Errorf("child %d status = %q, want pending", id, c.Status)
		}
		if c.ReservationID == nil || *c.ReservationID != r.ID {
			t.Errorf("child %d reservation = %v, want %d", id, c.ReservationID, r.ID)
		}
		if c.Version != 1 {
			t.Errorf("child %d version = %d, want 1", id, c.Version)
		}
	}

	got, err := rs.GetByToken(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil {
		t.Fatal("expected reservation")
	}
	if len(got.ChildIDs) != 2 || got.ChildIDs[0] != ids["101B"] || got.ChildIDs[1] != ids["101A"] {
		t.Errorf("child ids = %v, want request order", got.ChildIDs)
	}
	if got.Sponsor != testSponsor {
		t.Errorf("sponsor = %+v, want %+v", got.Sponsor, testSponsor)
	}
	if !got.ExpiresAt.Equal(testNow.Add(48 * time.Hour)) {
		t.Errorf("expires_at = %v, want %v", got.ExpiresAt, testNow.Add(48*time.Hour))
	}
}

func TestReservationCreateAllOrNothing(t *testing.T) {
	db := setupTestDB(t)
	ids := seedFamily(t, db, "101", "101A", "101B", "101C")
	rs := NewReservationStore(db)
	ctx := context.Background()

	if _, _, err := rs.Create(ctx, newReservation("first", ids["101B"])); err != nil {
		t.Fatalf("create first: %v", err)
	}

	r, unavailable, err := rs.Create(ctx, newReservation("second", ids["101A"], ids["101B"], ids["101C"]))
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if r != nil {
		t.Fatal("expected no reservation")
	}
	if len(unavailable) != 1 || unavailable[0] != ids["101B"] {
		t.Errorf("unavailable = %v, want [%d]", unavailable, ids["101B"])
	}
	if s := childStatus(t, db, ids["101A"]); s != model.ChildAvailable {
		t.Errorf("101A status = %q, want available", s)
	}
	if s := childStatus(t, db, ids["101C"]); s != model.ChildAvailable {
		t.Errorf("101C status = %q, want available", s)
	}

	got, _ := rs.GetByToken(ctx, "second")
	if got != nil {
		t.Error("second reservation should not exist")
	}
}

func TestReservationCreateUnknownChild(t *testing.T) {
	db := setupTestDB(t)
	ids := seedFamily(t, db, "101", "101A")
	rs := NewReservationStore(db)

	_, unavailable, err := rs.Create(context.Background(), newReservation("tok", ids["101A"], 777))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(unavailable) != 1 || unavailable[0] != 777 {
		t.Errorf("unavailable = %v, want [777]", unavailable)
	}
}

func TestReservationClose(t *testing.T) {
	db := setupTestDB(t)
	ids := seedFamily(t, db, "101", "101A", "101B")
	rs := NewReservationStore(db)
	ctx := context.Background()

	r, _, err := rs.Create(ctx, newReservation("tok", ids["101A"], ids["101B"]))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	released, changed, err := rs.Close(ctx, r.ID, model.ReservationExpired, testNow.Add(49*time.Hour))
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if !changed {
		t.Error("expected reservation to change")
	}
	if len(released) != 2 {
		t.Errorf("released = %v, want 2 children", released)
	}
	for _, id := range released {
		c, _ := NewChildStore(db).GetByID(ctx, id)
		if c.Status != model.ChildAvailable || c.ReservationID != nil {
			t.Errorf("child %d = %q/%v, want available with no reservation", id, c.Status, c.ReservationID)
		}
	}

	// Second close is a no-op.
	released, changed, err = rs.Close(ctx, r.ID, model.ReservationExpired, testNow.Add(50*time.Hour))
	if err != nil {
		t.Fatalf("close again: %v", err)
	}
	if changed || len(released) != 0 {
		t.Errorf("second close changed=%v released=%v, want no-op", changed, released)
	}

	got, _ := rs.GetByID(ctx, r.ID)
	if got.Status != model.ReservationExpired {
		t.Errorf("status = %q, want expired", got.Status)
	}
	if got.ClosedAt == nil {
		t.Error("expected closed_at to be set")
	}
}

func TestReservationCloseRejectsNonTerminal(t *testing.T) {
	db := setupTestDB(t)
	rs := NewReservationStore(db)

	if _, _, err := rs.Close(context.Background(), 1, model.ReservationConfirmed, testNow); err == nil {
		t.Fatal("expected error closing as confirmed")
	}
}

func TestReservationListExpired(t *testing.T) {
	db := setupTestDB(t)
	ids := seedFamily(t, db, "101", "101A", "101B")
	rs := NewReservationStore(db)
	ctx := context.Background()

	old := newReservation("old", ids["101A"])
	old.ExpiresAt = testNow.Add(time.Hour)
	if _, _, err := rs.Create(ctx, old); err != nil {
		t.Fatalf("create old: %v", err)
	}
	if _, _, err := rs.Create(ctx, newReservation("fresh", ids["101B"])); err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	expired, err := rs.ListExpired(ctx, testNow.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 || expired[0].Token != "old" {
		t.Errorf("expired = %+v, want only 'old'", expired)
	}
}

func TestReservationConcurrentOverlap(t *testing.T) {
	db := setupFileDB(t)
	ids := seedFamily(t, db, "101", "101A", "101B", "101C")
	rs := NewReservationStore(db)

	requests := [][]int64{
		{ids["101A"], ids["101B"]},
		{ids["101B"], ids["101C"]},
	}

	const rounds = 10
	for round := 0; round < rounds; round++ {
		var wg sync.WaitGroup
		results := make([]*NewReservation, len(requests))
		unavail := make([][]int64, len(requests))
		errs := make([]error, len(requests))
		for i, childIDs := range requests {
			wg.Add(1)
			go func(i int, childIDs []int64) {
				defer wg.Done()
				p := newReservation(fmt.Sprintf("r%d-%d", round, i), childIDs...)
				r, u, err := rs.Create(context.Background(), p)
				if r != nil {
					results[i] = &p
				}
				unavail[i], errs[i] = u, err
			}(i, childIDs)
		}
		wg.Wait()

		winners := 0
		for i := range requests {
			if errs[i] != nil {
				t.Fatalf("round %d request %d: %v", round, i, errs[i])
			}
			if results[i] != nil {
				winners++
				continue
			}
			if len(unavail[i]) != 1 || unavail[i][0] != ids["101B"] {
				t.Errorf("round %d request %d unavailable = %v, want [101B]", round, i, unavail[i])
			}
		}
		if winners != 1 {
			t.Fatalf("round %d: %d winners, want exactly 1", round, winners)
		}

		var pending int
		db.QueryRow(`SELECT COUNT(*) FROM children WHERE status = 'pending'`).Scan(&pending)
		if pending != 2 {
			t.Errorf("round %d: pending children = %d, want 2", round, pending)
		}

		// Reset for the next round.
		rows, _ := db.Query(`SELECT id FROM reservations WHERE status = 'active'`)
		var active []int64
		for rows.Next() {
			var id int64
			rows.Scan(&id)
			active = append(active, id)
		}
		rows.Close()
		for _, id := range active {
			if _, _, err := rs.Close(context.Background(), id, model.ReservationCancelled, testNow); err != nil {
				t.Fatalf("reset: %v", err)
			}
		}
	}
}
