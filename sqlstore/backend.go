// Package sqlstore implements jobstatus.Backend on a relational database
// (Postgres or SQLite) through sqlx. Values, sorted-set members and set
// members live in three tables; TTLs are enforced on read and reclaimed by
// Sweep.
//
// Quick start:
//  1. Open a *sqlx.DB with the "postgres" or "sqlite" driver.
//  2. Create the backend with sqlstore.New(db) and call Migrate once.
//  3. Wrap it with jobstatus.NewStore.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Option configures the Backend.
type Option func(*Backend)

// WithClock sets the time source used to evaluate TTLs.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// Backend is a SQL implementation of the jobstatus primitive contract.
// It is safe for concurrent use.
type Backend struct {
	db  *sqlx.DB
	now func() time.Time
}

// New creates a backend on db. The caller owns the db lifecycle.
func New(db *sqlx.DB, opts ...Option) *Backend {
	b := &Backend{db: db, now: time.Now}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Migrate creates the tables if they do not exist.
func (b *Backend) Migrate(ctx context.Context) error {
	if b.db == nil {
		return errors.New("nil db")
	}
	blob := "BLOB"
	if isPostgres(b.db.DriverName()) {
		blob = "BYTEA"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS jobstatus_kv (
    k          VARCHAR(255) PRIMARY KEY,
    v          %s           NOT NULL,
    expires_at BIGINT       NULL
)`, blob),
		`CREATE TABLE IF NOT EXISTS jobstatus_zset (
    k      VARCHAR(255)     NOT NULL,
    member VARCHAR(255)     NOT NULL,
    score  DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (k, member)
)`,
		`CREATE TABLE IF NOT EXISTS jobstatus_set (
    k      VARCHAR(255) NOT NULL,
    member VARCHAR(255) NOT NULL,
    PRIMARY KEY (k, member)
)`,
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: migrate: %w", err)
		}
	}
	return nil
}

// Ping verifies the database connection is alive.
func (b *Backend) Ping(ctx context.Context) error {
	if b.db == nil {
		return errors.New("nil db")
	}
	return b.db.PingContext(ctx)
}

// Sweep deletes values whose TTL has passed and returns how many were
// removed.
func (b *Backend) Sweep(ctx context.Context) (int64, error) {
	q := b.db.Rebind(`DELETE FROM jobstatus_kv WHERE expires_at IS NOT NULL AND expires_at <= ?`)
	res, err := b.db.ExecContext(ctx, q, b.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlstore: sweep: %w", err)
	}
	return res.RowsAffected()
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	q := b.db.Rebind(`SELECT v FROM jobstatus_kv WHERE k = ? AND (expires_at IS NULL OR expires_at > ?)`)
	var val []byte
	err := b.db.GetContext(ctx, &val, q, key, b.now().UnixNano())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: get: %w", err)
	}
	return val, true, nil
}

type kvRow struct {
	K string `db:"k"`
	V []byte `db:"v"`
}

func (b *Backend) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`SELECT k, v FROM jobstatus_kv WHERE k IN (?) AND (expires_at IS NULL OR expires_at > ?)`, keys, b.now().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: mget: %w", err)
	}
	var rows []kvRow
	if err := b.db.SelectContext(ctx, &rows, b.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("sqlstore: mget: %w", err)
	}
	byKey := make(map[string][]byte, len(rows))
	for _, r := range rows {
		byKey[r.K] = r.V
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: b.now().Add(ttl).UnixNano(), Valid: true}
	}
	q := b.db.Rebind(`INSERT INTO jobstatus_kv (k, v, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (k) DO UPDATE SET v = excluded.v, expires_at = excluded.expires_at`)
	if _, err := b.db.ExecContext(ctx, q, key, value, expiresAt); err != nil {
		return fmt.Errorf("sqlstore: set: %w", err)
	}
	return nil
}

func (b *Backend) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM jobstatus_kv WHERE k IN (?)`, keys)
	if err != nil {
		return fmt.Errorf("sqlstore: del: %w", err)
	}
	if _, err := b.db.ExecContext(ctx, b.db.Rebind(q), args...); err != nil {
		return fmt.Errorf("sqlstore: del: %w", err)
	}
	return nil
}

func (b *Backend) ZAdd(ctx context.Context, key, member string, score float64) error {
	q := b.db.Rebind(`INSERT INTO jobstatus_zset (k, member, score) VALUES (?, ?, ?)
		ON CONFLICT (k, member) DO UPDATE SET score = excluded.score`)
	if _, err := b.db.ExecContext(ctx, q, key, member, score); err != nil {
		return fmt.Errorf("sqlstore: zadd: %w", err)
	}
	return nil
}

func (b *Backend) ZRem(ctx context.Context, key, member string) error {
	q := b.db.Rebind(`DELETE FROM jobstatus_zset WHERE k = ? AND member = ?`)
	if _, err := b.db.ExecContext(ctx, q, key, member); err != nil {
		return fmt.Errorf("sqlstore: zrem: %w", err)
	}
	return nil
}

func (b *Backend) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	q := b.db.Rebind(`DELETE FROM jobstatus_zset WHERE k = ? AND score >= ? AND score <= ?`)
	if _, err := b.db.ExecContext(ctx, q, key, min, max); err != nil {
		return fmt.Errorf("sqlstore: zremrangebyscore: %w", err)
	}
	return nil
}

// ZRevRange orders by score then member, both descending, which matches
// Redis ordering for equal scores.
func (b *Backend) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if start < 0 {
		start = 0
	}
	base := `SELECT member FROM jobstatus_zset WHERE k = ? ORDER BY score DESC, member DESC`
	var members []string
	if stop < 0 {
		if err := b.db.SelectContext(ctx, &members, b.db.Rebind(base), key); err != nil {
			return nil, fmt.Errorf("sqlstore: zrevrange: %w", err)
		}
		if start >= int64(len(members)) {
			return []string{}, nil
		}
		return members[start:], nil
	}
	if stop < start {
		return []string{}, nil
	}
	q := b.db.Rebind(base + ` LIMIT ? OFFSET ?`)
	if err := b.db.SelectContext(ctx, &members, q, key, stop-start+1, start); err != nil {
		return nil, fmt.Errorf("sqlstore: zrevrange: %w", err)
	}
	return members, nil
}

func (b *Backend) ZCard(ctx context.Context, key string) (int64, error) {
	var n int64
	q := b.db.Rebind(`SELECT COUNT(*) FROM jobstatus_zset WHERE k = ?`)
	if err := b.db.GetContext(ctx, &n, q, key); err != nil {
		return 0, fmt.Errorf("sqlstore: zcard: %w", err)
	}
	return n, nil
}

func (b *Backend) SAdd(ctx context.Context, key, member string) error {
	q := b.db.Rebind(`INSERT INTO jobstatus_set (k, member) VALUES (?, ?) ON CONFLICT (k, member) DO NOTHING`)
	if _, err := b.db.ExecContext(ctx, q, key, member); err != nil {
		return fmt.Errorf("sqlstore: sadd: %w", err)
	}
	return nil
}

func (b *Backend) SRem(ctx context.Context, key, member string) error {
	q := b.db.Rebind(`DELETE FROM jobstatus_set WHERE k = ? AND member = ?`)
	if _, err := b.db.ExecContext(ctx, q, key, member); err != nil {
		return fmt.Errorf("sqlstore: srem: %w", err)
	}
	return nil
}

func (b *Backend) SIsMember(ctx context.Context, key, member string) (bool, error) {
	var n int64
	q := b.db.Rebind(`SELECT COUNT(*) FROM jobstatus_set WHERE k = ? AND member = ?`)
	if err := b.db.GetContext(ctx, &n, q, key, member); err != nil {
		return false, fmt.Errorf("sqlstore: sismember: %w", err)
	}
	return n > 0, nil
}

func (b *Backend) SMembers(ctx context.Context, key string) ([]string, error) {
	members := []string{}
	q := b.db.Rebind(`SELECT member FROM jobstatus_set WHERE k = ?`)
	if err := b.db.SelectContext(ctx, &members, q, key); err != nil {
		return nil, fmt.Errorf("sqlstore: smembers: %w", err)
	}
	return members, nil
}

func isPostgres(driver string) bool {
	return driver == "postgres" || driver == "pgx"
}
