package users

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nugget/pulse/internal/cache"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db, "Europe/Berlin", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestGetOrCreate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	u, err := s.GetOrCreate(ctx, Profile{ChatID: 100, Username: "sam", FirstName: "Sam"})
	if err != nil {
		t.Fatal(err)
	}
	if u.ID == "" || u.Timezone != "Europe/Berlin" || u.Name() != "Sam" {
		t.Errorf("new user = %+v", u)
	}

	again, err := s.GetOrCreate(ctx, Profile{ChatID: 100, Username: "sam", FirstName: "Samantha"})
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != u.ID {
		t.Errorf("second contact created a new user: %s != %s", again.ID, u.ID)
	}
	if again.FirstName != "Samantha" {
		t.Errorf("first name not refreshed: %q", again.FirstName)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := testStore(t)
	u, err := s.Get(context.Background(), "nope")
	if err != nil || u != nil {
		t.Errorf("Get(missing) = %v, %v; want nil, nil", u, err)
	}
}

func TestSetTimezone(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	u, _ := s.GetOrCreate(ctx, Profile{ChatID: 1})

	if err := s.SetTimezone(ctx, u.ID, "Not/AZone"); err == nil {
		t.Error("invalid zone accepted")
	}
	if err := s.SetTimezone(ctx, u.ID, "UTC"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get(ctx, u.ID)
	if got.Timezone != "UTC" || got.Location() != time.UTC {
		t.Errorf("timezone = %q", got.Timezone)
	}
}

func TestActiveSince(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return now.AddDate(0, 0, -40) }
	s.GetOrCreate(ctx, Profile{ChatID: 1})
	s.now = func() time.Time { return now.AddDate(0, 0, -2) }
	s.GetOrCreate(ctx, Profile{ChatID: 2})

	active, err := s.ActiveSince(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ChatID != 2 {
		t.Errorf("active = %+v", active)
	}
}

func TestPreferences_WriteThroughInvalidatesCache(t *testing.T) {
	s := testStore(t)
	mem := cache.NewMemory()
	s.WithCache(mem, time.Hour)
	ctx := context.Background()
	u, _ := s.GetOrCreate(ctx, Profile{ChatID: 1})

	p, err := s.Preferences(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Enabled(PrefNotifications) {
		t.Error("missing preference should read as enabled")
	}
	if _, ok, _ := mem.Get(ctx, prefsKey(u.ID)); !ok {
		t.Fatal("preferences not cached after read")
	}

	if err := s.SetPreference(ctx, u.ID, PrefNotifications, Disabled); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := mem.Get(ctx, prefsKey(u.ID)); ok {
		t.Error("cache not invalidated by write")
	}

	p, _ = s.Preferences(ctx, u.ID)
	if p.Enabled(PrefNotifications) {
		t.Error("write not visible after invalidation")
	}

	if err := s.ResetPreferences(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	p, _ = s.Preferences(ctx, u.ID)
	if len(p) != 0 {
		t.Errorf("preferences after reset = %v", p)
	}
}
