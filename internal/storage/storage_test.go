package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)

	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestMigrateTwice(t *testing.T) {
	store := newTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New("mysql", "dsn"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestInTxRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.InsertGiveaway(ctx, Giveaway{ChannelID: "c", MessageID: "m", Prize: "p", MaxWinners: 1, StartTime: time.Unix(0, 0), EndTime: time.Unix(10, 0)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	total, err := store.CountGiveaways(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected rollback, got %d giveaways", total)
	}
}

func TestSilencedMembers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddSilenced(ctx, "u1", time.Unix(100, 0)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.AddSilenced(ctx, "u1", time.Unix(200, 0)); err != nil {
		t.Fatalf("add twice: %v", err)
	}
	silenced, err := store.IsSilenced(ctx, "u1")
	if err != nil || !silenced {
		t.Fatalf("expected silenced, got %v %v", silenced, err)
	}
	removed, err := store.RemoveSilenced(ctx, "u1")
	if err != nil || !removed {
		t.Fatalf("expected removal, got %v %v", removed, err)
	}
	removed, err = store.RemoveSilenced(ctx, "u1")
	if err != nil || removed {
		t.Fatalf("expected nothing removed, got %v %v", removed, err)
	}
}

func TestDayStatsAndAwards(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = store.IncrementDayStat(ctx, "u1", "2026-01-02")
	}
	_ = store.IncrementDayStat(ctx, "u2", "2026-01-02")
	_ = store.IncrementDayStat(ctx, "u2", "2026-01-03")

	top, err := store.TopDayStats(ctx, "2026-01-02", 5)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "u1" || top[0].Count != 3 {
		t.Fatalf("unexpected top stats: %+v", top)
	}
	total, err := store.DayTotal(ctx, "2026-01-02")
	if err != nil || total != 4 {
		t.Fatalf("expected total 4, got %d %v", total, err)
	}

	inserted, err := store.InsertAward(ctx, AwardWinner{Day: "2026-01-02", UserID: "u1", AwardedAt: time.Unix(1, 0)})
	if err != nil || !inserted {
		t.Fatalf("insert award: %v %v", inserted, err)
	}
	inserted, err = store.InsertAward(ctx, AwardWinner{Day: "2026-01-02", UserID: "u2", AwardedAt: time.Unix(2, 0)})
	if err != nil || inserted {
		t.Fatalf("expected duplicate award to be ignored: %v %v", inserted, err)
	}
	latest, err := store.LatestAward(ctx, "2026-01-03")
	if err != nil || latest.UserID != "u1" {
		t.Fatalf("latest award: %+v %v", latest, err)
	}
	if _, err := store.GetAward(ctx, "2026-01-03"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
