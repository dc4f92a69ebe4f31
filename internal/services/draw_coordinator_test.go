package services

import (
	"errors"
	"testing"
	"time"

	"luckydraw/internal/models"
)

type drawFixture struct {
	store    *GameStore
	clock    *FakeClock
	draws    *DrawCoordinator
	category models.Category
	done     []Completion
}

func newDrawFixture(t *testing.T, names ...string) *drawFixture {
	t.Helper()
	clock := NewFakeClock(time.UnixMilli(1_700_000_000_000))
	store := NewGameStore(clock)
	c := store.CreateCategory("Prizes", models.ThemeGold)
	store.AddBulkItems(c.ID, names)

	f := &drawFixture{store: store, clock: clock, category: c}
	f.draws = NewDrawCoordinator(store, NewDrawEngine(1), clock)
	f.draws.OnDrawComplete(func(c Completion) { f.done = append(f.done, c) })
	return f
}

func (f *drawFixture) spin() time.Duration {
	return f.store.Settings().SpinDurationValue()
}

func TestDrawCoordinator_Scenario(t *testing.T) {
	f := newDrawFixture(t, "A", "B", "C", "D")

	spin, err := f.draws.StartDraw(f.category.ID, 2)
	if err != nil {
		t.Fatalf("Expected draw to start, got %v", err)
	}
	if len(spin.Winners) != 2 || spin.Winners[0].ID == spin.Winners[1].ID {
		t.Fatalf("Expected 2 distinct winners, got %+v", spin.Winners)
	}
	if spin.DurationMS != 5000 || spin.EndsAt-spin.StartedAt != 5000 {
		t.Errorf("unexpected spin timing: %+v", spin)
	}

	// Nothing is applied until the spin ends.
	if len(f.store.WonItems(f.category.ID)) != 0 || len(f.store.History()) != 0 {
		t.Fatal("state changed before the spin finished")
	}
	if st := f.draws.Status(); st.State != DrawSpinning || len(st.PendingWinners) != 2 {
		t.Fatalf("unexpected status while spinning: %+v", st)
	}

	f.clock.Advance(f.spin() - time.Millisecond)
	if len(f.done) != 0 {
		t.Fatal("committed too early")
	}
	f.clock.Advance(time.Millisecond)

	if len(f.done) != 1 {
		t.Fatalf("Expected exactly one completion, got %d", len(f.done))
	}
	won := f.store.WonItems(f.category.ID)
	if len(won) != 2 {
		t.Fatalf("Expected 2 won items, got %d", len(won))
	}
	wonIDs := map[string]bool{won[0].ID: true, won[1].ID: true}
	for _, w := range spin.Winners {
		if !wonIDs[w.ID] {
			t.Errorf("pre-selected winner %s was not the one committed", w.Name)
		}
	}
	if len(f.store.AvailableItems(f.category.ID)) != 2 {
		t.Errorf("Expected 2 items to remain eligible")
	}
	history := f.store.History()
	if len(history) != 1 || len(history[0].Winners) != 2 {
		t.Fatalf("Expected one history entry with 2 winners, got %+v", history)
	}
	if f.done[0].Result == nil || f.done[0].Result.ID != history[0].ID {
		t.Errorf("completion does not carry the recorded result")
	}
	if st := f.draws.Status(); st.State != DrawIdle || len(st.PendingWinners) != 0 {
		t.Errorf("Expected idle after commit, got %+v", st)
	}
}

func TestDrawCoordinator_Rejections(t *testing.T) {
	t.Run("empty pool", func(t *testing.T) {
		f := newDrawFixture(t, "A")
		f.store.ConfirmWinners(f.category.ID, f.store.AvailableItems(f.category.ID))
		before, _ := f.store.Category(f.category.ID)

		_, err := f.draws.StartDraw(f.category.ID, 1)
		if !errors.Is(err, ErrNoEligibleItems) {
			t.Fatalf("Expected ErrNoEligibleItems, got %v", err)
		}
		after, _ := f.store.Category(f.category.ID)
		if before.UpdatedAt != after.UpdatedAt || len(f.store.History()) != 1 {
			t.Error("rejected draw must not mutate state")
		}
		if f.draws.Status().State != DrawIdle || f.clock.Pending() != 0 {
			t.Error("rejected draw must stay idle with no timer")
		}
	})

	t.Run("category with no items", func(t *testing.T) {
		f := newDrawFixture(t)
		if _, err := f.draws.StartDraw(f.category.ID, 1); !errors.Is(err, ErrNoEligibleItems) {
			t.Fatalf("Expected ErrNoEligibleItems, got %v", err)
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		f := newDrawFixture(t, "A")
		if _, err := f.draws.StartDraw("missing", 1); !errors.Is(err, ErrCategoryNotFound) {
			t.Fatalf("Expected ErrCategoryNotFound, got %v", err)
		}
	})

	t.Run("re-entrant start keeps the pending winners", func(t *testing.T) {
		f := newDrawFixture(t, "A", "B", "C", "D", "E")
		spin, err := f.draws.StartDraw(f.category.ID, 2)
		if err != nil {
			t.Fatal(err)
		}

		if _, err := f.draws.StartDraw(f.category.ID, 3); !errors.Is(err, ErrDrawInProgress) {
			t.Fatalf("Expected ErrDrawInProgress, got %v", err)
		}
		other := f.store.CreateCategory("Other", models.ThemeBlue)
		f.store.AddItem(other.ID, "Z")
		if _, err := f.draws.StartDraw(other.ID, 1); !errors.Is(err, ErrDrawInProgress) {
			t.Fatalf("Expected ErrDrawInProgress for another category, got %v", err)
		}

		pending := f.draws.Status().PendingWinners
		if len(pending) != 2 || pending[0].ID != spin.Winners[0].ID || pending[1].ID != spin.Winners[1].ID {
			t.Fatalf("pending winners changed: %+v", pending)
		}

		f.clock.Advance(f.spin())
		if len(f.store.History()) != 1 || len(f.store.History()[0].Winners) != 2 {
			t.Fatal("expected only the first draw to be recorded")
		}
		if _, err := f.draws.StartDraw(f.category.ID, 1); err != nil {
			t.Fatalf("expected a new draw after commit, got %v", err)
		}
	})
}

func TestDrawCoordinator_CountClamp(t *testing.T) {
	f := newDrawFixture(t, "A", "B", "C")
	spin, err := f.draws.StartDraw(f.category.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(spin.Winners) != 3 {
		t.Fatalf("Expected 3 winners, got %d", len(spin.Winners))
	}

	g := newDrawFixture(t, "A", "B", "C")
	spin, err = g.draws.StartDraw(g.category.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(spin.Winners) != 1 {
		t.Fatalf("Expected count 0 to clamp to 1 winner, got %d", len(spin.Winners))
	}

	if ClampDrawCount(1000) != MaxDrawCount || ClampDrawCount(-5) != MinDrawCount || ClampDrawCount(7) != 7 {
		t.Error("ClampDrawCount out of range")
	}
}

func TestDrawCoordinator_RemoveAfterWinOff(t *testing.T) {
	f := newDrawFixture(t, "A", "B", "C")
	if _, err := f.store.UpdateSettings([]byte(`{"removeAfterWin":false}`)); err != nil {
		t.Fatal(err)
	}

	if _, err := f.draws.StartDraw(f.category.ID, 2); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(f.spin())

	if len(f.store.History()) != 1 || len(f.store.History()[0].Winners) != 2 {
		t.Fatal("expected winners in history")
	}
	for _, it := range mustCategory(t, f.store, f.category.ID).Items {
		if it.HasWon {
			t.Errorf("%s should still be eligible", it.Name)
		}
	}
}

func TestDrawCoordinator_HistoryOrdering(t *testing.T) {
	f := newDrawFixture(t, "A", "B", "C", "D", "E")
	var order []string
	for i := 0; i < 5; i++ {
		if _, err := f.draws.StartDraw(f.category.ID, 1); err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		f.clock.Advance(f.spin())
		order = append(order, f.done[len(f.done)-1].Result.ID)
	}

	history := f.store.History()
	if len(history) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(history))
	}
	for i := range history {
		if history[i].ID != order[len(order)-1-i] {
			t.Errorf("history[%d] is not the %d-th most recent draw", i, i+1)
		}
	}
	if len(f.store.AvailableItems(f.category.ID)) != 0 {
		t.Error("expected all items to have won")
	}
	if _, err := f.draws.StartDraw(f.category.ID, 1); !errors.Is(err, ErrNoEligibleItems) {
		t.Errorf("expected exhausted pool, got %v", err)
	}
}

func TestDrawCoordinator_DurationCapturedAtStart(t *testing.T) {
	f := newDrawFixture(t, "A", "B")
	if _, err := f.draws.StartDraw(f.category.ID, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.UpdateSettings([]byte(`{"spinDuration":30}`)); err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(5 * time.Second)
	if len(f.done) != 1 {
		t.Fatal("expected commit after the duration captured at start")
	}
}

func TestDrawCoordinator_CategoryDeletedMidSpin(t *testing.T) {
	f := newDrawFixture(t, "A", "B")
	if _, err := f.draws.StartDraw(f.category.ID, 1); err != nil {
		t.Fatal(err)
	}
	f.store.DeleteCategory(f.category.ID)
	f.clock.Advance(f.spin())

	if len(f.done) != 1 || f.done[0].Result != nil || len(f.done[0].Winners) != 1 {
		t.Fatalf("unexpected completion: %+v", f.done)
	}
	if len(f.store.History()) != 0 {
		t.Error("nothing should be recorded for a deleted category")
	}
	if f.draws.IsSpinning() {
		t.Error("coordinator must return to idle")
	}
}

func TestDrawCoordinator_PartitionHoldsThroughout(t *testing.T) {
	f := newDrawFixture(t, "A", "B", "C", "D", "E", "F")
	for i := 0; i < 3; i++ {
		assertPartition(t, f.store, f.category.ID)
		if _, err := f.draws.StartDraw(f.category.ID, 2); err != nil {
			t.Fatal(err)
		}
		assertPartition(t, f.store, f.category.ID)
		f.clock.Advance(f.spin())
		assertPartition(t, f.store, f.category.ID)
	}
	f.store.ResetCategoryWinners(f.category.ID)
	assertPartition(t, f.store, f.category.ID)
}

func mustCategory(t *testing.T, s *GameStore, id string) models.Category {
	t.Helper()
	c, ok := s.Category(id)
	if !ok {
		t.Fatalf("category %s not found", id)
	}
	return c
}

func TestDrawCoordinator_WhileIdle(t *testing.T) {
	f := newDrawFixture(t, "A", "B")

	ran := false
	if err := f.draws.WhileIdle(func() { ran = true }); err != nil || !ran {
		t.Fatalf("Expected fn to run while idle, ran=%v err=%v", ran, err)
	}

	if _, err := f.draws.StartDraw(f.category.ID, 1); err != nil {
		t.Fatal(err)
	}
	ran = false
	err := f.draws.WhileIdle(func() {
		ran = true
		f.store.ResetAllData()
	})
	if !errors.Is(err, ErrDrawInProgress) || ran {
		t.Fatalf("Expected ErrDrawInProgress without running fn, ran=%v err=%v", ran, err)
	}

	f.clock.Advance(f.spin())
	if len(f.done) != 1 || f.done[0].Result == nil {
		t.Fatalf("Expected the pending draw to commit onto intact data, got %+v", f.done)
	}
}
