package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	b := New(openTestDB(t), opts...)
	if err := b.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return b
}

func TestBackend_MigrateTwice(t *testing.T) {
	b := newTestBackend(t)
	if err := b.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestBackend_GetSetDel(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if _, ok, err := b.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get missing: ok=%v err=%v", ok, err)
	}
	if err := b.Set(ctx, "k", []byte("v1"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := b.Set(ctx, "k", []byte("v2"), 0); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	val, ok, err := b.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(val) != "v2" {
		t.Fatalf("expected v2, got %q", val)
	}
	if err := b.Del(ctx, "k", "missing"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Fatalf("expected k to be deleted")
	}
	if err := b.Del(ctx); err != nil {
		t.Fatalf("Del with no keys: %v", err)
	}
}

func TestBackend_TTLAndSweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := newTestBackend(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if err := b.Set(ctx, "short", []byte("x"), time.Second); err != nil {
		t.Fatalf("Set short: %v", err)
	}
	if err := b.Set(ctx, "forever", []byte("y"), 0); err != nil {
		t.Fatalf("Set forever: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "short"); !ok {
		t.Fatalf("expected short to be readable before expiry")
	}

	now = now.Add(2 * time.Second)
	if _, ok, _ := b.Get(ctx, "short"); ok {
		t.Fatalf("expected short to be expired")
	}
	vals, err := b.MGet(ctx, "short", "forever")
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if vals[0] != nil || string(vals[1]) != "y" {
		t.Fatalf("unexpected MGet result: %q", vals)
	}

	n, err := b.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept row, got %d", n)
	}
}

func TestBackend_MGetKeepsOrder(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	_ = b.Set(ctx, "a", []byte("1"), 0)
	_ = b.Set(ctx, "c", []byte("3"), 0)

	vals, err := b.MGet(ctx, "c", "b", "a")
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if len(vals) != 3 || string(vals[0]) != "3" || vals[1] != nil || string(vals[2]) != "1" {
		t.Fatalf("unexpected MGet result: %q", vals)
	}
	if vals, err := b.MGet(ctx); err != nil || len(vals) != 0 {
		t.Fatalf("MGet empty: %q %v", vals, err)
	}
}

func TestBackend_SortedSet(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	for i, m := range []string{"a", "b", "c", "d"} {
		if err := b.ZAdd(ctx, "z", m, float64(10+i)); err != nil {
			t.Fatalf("ZAdd %s: %v", m, err)
		}
	}
	if err := b.ZAdd(ctx, "other", "a", 1); err != nil {
		t.Fatalf("ZAdd other: %v", err)
	}

	n, err := b.ZCard(ctx, "z")
	if err != nil || n != 4 {
		t.Fatalf("ZCard: n=%d err=%v", n, err)
	}

	all, err := b.ZRevRange(ctx, "z", 0, -1)
	if err != nil {
		t.Fatalf("ZRevRange all: %v", err)
	}
	assertMembers(t, all, "d", "c", "b", "a")

	page, err := b.ZRevRange(ctx, "z", 1, 2)
	if err != nil {
		t.Fatalf("ZRevRange page: %v", err)
	}
	assertMembers(t, page, "c", "b")

	tail, _ := b.ZRevRange(ctx, "z", 3, -1)
	assertMembers(t, tail, "a")

	empty, _ := b.ZRevRange(ctx, "z", 10, 20)
	assertMembers(t, empty)

	if err := b.ZRemRangeByScore(ctx, "z", 0, 11); err != nil {
		t.Fatalf("ZRemRangeByScore: %v", err)
	}
	if err := b.ZRem(ctx, "z", "d"); err != nil {
		t.Fatalf("ZRem: %v", err)
	}
	rest, _ := b.ZRevRange(ctx, "z", 0, -1)
	assertMembers(t, rest, "c")

	other, _ := b.ZRevRange(ctx, "other", 0, -1)
	assertMembers(t, other, "a")
}

func TestBackend_Set(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	for _, m := range []string{"x", "x", "y"} {
		if err := b.SAdd(ctx, "s", m); err != nil {
			t.Fatalf("SAdd %s: %v", m, err)
		}
	}
	ok, err := b.SIsMember(ctx, "s", "x")
	if err != nil || !ok {
		t.Fatalf("SIsMember x: ok=%v err=%v", ok, err)
	}
	members, err := b.SMembers(ctx, "s")
	if err != nil || len(members) != 2 {
		t.Fatalf("SMembers: %v err=%v", members, err)
	}

	_ = b.SRem(ctx, "s", "x")
	if err := b.SRem(ctx, "s", "x"); err != nil {
		t.Fatalf("SRem twice: %v", err)
	}
	if ok, _ := b.SIsMember(ctx, "s", "x"); ok {
		t.Fatalf("expected x to be removed")
	}
	none, err := b.SMembers(ctx, "missing")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("SMembers missing: %v err=%v", none, err)
	}
}

func TestBackend_NilDB(t *testing.T) {
	b := New(nil)
	if err := b.Migrate(context.Background()); err == nil {
		t.Fatalf("expected error for nil db")
	}
	if err := b.Ping(context.Background()); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func assertMembers(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
