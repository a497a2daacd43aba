package registry

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

// openTestStore opens a fresh registry database in a per-test directory.
func openTestStore(t *testing.T) *sql.DB {
	t.Helper()
	db, err := openStore(filepath.Join(t.TempDir(), dbFileName))
	if err != nil {
		t.Fatalf("openStore() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// testDescriptor returns a populated descriptor for the given slot.
func testDescriptor(slot string) Descriptor {
	now := time.Now()
	return Descriptor{
		Slot:        slot,
		LaunchID:    "4b825dc6-42aa-4b0c-9c35-8d0aaa579c8b",
		Fingerprint: "a3f2c4d5e6f70819",
		PID:         4242,
		BaseURL:     "http://127.0.0.1:8173",
		HealthPaths: []string{"/healthz", "/ready"},
		StartedAt:   now.Add(-time.Minute),
		CheckedAt:   now,
	}
}

// equalDescriptors compares two descriptors at millisecond time precision,
// which is what the store persists.
func equalDescriptors(a, b Descriptor) bool {
	if a.Slot != b.Slot || a.LaunchID != b.LaunchID || a.Fingerprint != b.Fingerprint ||
		a.PID != b.PID || a.BaseURL != b.BaseURL {
		return false
	}
	if len(a.HealthPaths) != len(b.HealthPaths) {
		return false
	}
	for i := range a.HealthPaths {
		if a.HealthPaths[i] != b.HealthPaths[i] {
			return false
		}
	}
	return a.StartedAt.UnixMilli() == b.StartedAt.UnixMilli() &&
		a.CheckedAt.UnixMilli() == b.CheckedAt.UnixMilli()
}

func TestStore_UpsertAndGet(t *testing.T) {
	t.Parallel()

	db := openTestStore(t)
	ctx := context.Background()
	want := testDescriptor("storefront")

	if err := upsertSlot(ctx, db, want); err != nil {
		t.Fatalf("upsertSlot() error: %v", err)
	}

	got, ok, err := getSlot(ctx, db, "storefront")
	if err != nil {
		t.Fatalf("getSlot() error: %v", err)
	}
	if !ok {
		t.Fatal("expected slot to exist")
	}
	if !equalDescriptors(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	db := openTestStore(t)
	_, ok, err := getSlot(context.Background(), db, "nope")
	if err != nil {
		t.Fatalf("getSlot() error: %v", err)
	}
	if ok {
		t.Error("missing slot should report ok=false")
	}
}

// TestStore_UpsertReplaces verifies that a second save for the same slot
// replaces the previous descriptor wholesale.
func TestStore_UpsertReplaces(t *testing.T) {
	t.Parallel()

	db := openTestStore(t)
	ctx := context.Background()

	first := testDescriptor("storefront")
	if err := upsertSlot(ctx, db, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := first
	second.LaunchID = "b17a5c03-7e4d-4a25-89cf-0d19e54aa001"
	second.PID = 5151
	second.BaseURL = "http://127.0.0.1:9090"
	second.HealthPaths = []string{"/livez"}
	if err := upsertSlot(ctx, db, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, ok, err := getSlot(ctx, db, "storefront")
	if err != nil || !ok {
		t.Fatalf("getSlot() = ok=%v err=%v", ok, err)
	}
	if !equalDescriptors(got, second) {
		t.Errorf("got %+v, want replacement %+v", got, second)
	}
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	db := openTestStore(t)
	ctx := context.Background()

	if err := deleteSlot(ctx, db, "absent"); err != nil {
		t.Fatalf("deleting an absent slot should succeed, got %v", err)
	}

	if err := upsertSlot(ctx, db, testDescriptor("doomed")); err != nil {
		t.Fatalf("upsertSlot() error: %v", err)
	}
	if err := deleteSlot(ctx, db, "doomed"); err != nil {
		t.Fatalf("deleteSlot() error: %v", err)
	}
	if _, ok, _ := getSlot(ctx, db, "doomed"); ok {
		t.Error("slot should be gone after delete")
	}
}

func TestStore_Touch(t *testing.T) {
	t.Parallel()

	db := openTestStore(t)
	ctx := context.Background()

	d := testDescriptor("storefront")
	if err := upsertSlot(ctx, db, d); err != nil {
		t.Fatalf("upsertSlot() error: %v", err)
	}

	later := d.CheckedAt.Add(time.Hour)
	if err := touchSlot(ctx, db, "storefront", later); err != nil {
		t.Fatalf("touchSlot() error: %v", err)
	}

	got, _, err := getSlot(ctx, db, "storefront")
	if err != nil {
		t.Fatalf("getSlot() error: %v", err)
	}
	if got.CheckedAt.UnixMilli() != later.UnixMilli() {
		t.Errorf("CheckedAt = %v, want %v", got.CheckedAt, later)
	}
	if got.StartedAt.UnixMilli() != d.StartedAt.UnixMilli() {
		t.Error("touch must not modify StartedAt")
	}
}

func TestStore_ListOrdersBySlot(t *testing.T) {
	t.Parallel()

	db := openTestStore(t)
	ctx := context.Background()

	for _, slot := range []string{"zeta", "alpha", "mid"} {
		if err := upsertSlot(ctx, db, testDescriptor(slot)); err != nil {
			t.Fatalf("upsertSlot(%s) error: %v", slot, err)
		}
	}

	got, err := listSlots(ctx, db)
	if err != nil {
		t.Fatalf("listSlots() error: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, slot := range want {
		if got[i].Slot != slot {
			t.Errorf("slot[%d] = %q, want %q", i, got[i].Slot, slot)
		}
	}
}

// TestStore_PersistsAcrossOpens verifies that one run's descriptors are
// visible to the next open of the same database file, which is the whole
// point of the registry.
func TestStore_PersistsAcrossOpens(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), dbFileName)
	ctx := context.Background()
	want := testDescriptor("storefront")

	db, err := openStore(path)
	if err != nil {
		t.Fatalf("openStore() error: %v", err)
	}
	if err := upsertSlot(ctx, db, want); err != nil {
		t.Fatalf("upsertSlot() error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db2, err := openStore(path)
	if err != nil {
		t.Fatalf("second openStore() error: %v", err)
	}
	defer db2.Close()

	got, ok, err := getSlot(ctx, db2, "storefront")
	if err != nil || !ok {
		t.Fatalf("getSlot() = ok=%v err=%v", ok, err)
	}
	if !equalDescriptors(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
