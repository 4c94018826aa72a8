package jobstatus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Key names shared with any external reader such as a dashboard.
const (
	recordKeyPrefix = "status:"
	indexKey        = "_statuses"
	killKey         = "_kill"
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithExpireIn sets how long records live after their last write. The
// chronological index is pruned to the same window on Create. Zero disables
// expiration.
func WithExpireIn(d time.Duration) StoreOption {
	return func(s *Store) { s.expireIn = d }
}

// WithCodec sets the record codec. Defaults to JSON.
func WithCodec(c Codec) StoreOption {
	return func(s *Store) { s.codec = c }
}

// WithClock sets the time source used for creation times and messages.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store persists, indexes and queries status records and owns the kill list.
// It holds no local state: every call round-trips to the backend.
type Store struct {
	backend  Backend
	codec    Codec
	expireIn time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewStore creates a Store on top of backend.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		codec:   &JSONCodec{},
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ExpireIn returns the configured record TTL, zero when disabled.
func (s *Store) ExpireIn() time.Duration { return s.expireIn }

// Now returns the store's current time.
func (s *Store) Now() time.Time { return s.now() }

// RecordKey returns the backend key holding the record for uuid.
func RecordKey(uuid string) string { return recordKeyPrefix + uuid }

// Create stores a new record for uuid and adds it to the chronological
// index. When expiration is configured, index entries older than the window
// are pruned.
func (s *Store) Create(ctx context.Context, uuid string, frags ...Fragment) (string, error) {
	rec, err := s.Set(ctx, uuid, frags...)
	if err != nil {
		return "", err
	}
	if err := s.backend.ZAdd(ctx, indexKey, uuid, float64(rec.Time)); err != nil {
		return "", fmt.Errorf("jobstatus: index status: %w", err)
	}
	if s.expireIn > 0 {
		cutoff := s.now().Add(-s.expireIn).Unix()
		if err := s.backend.ZRemRangeByScore(ctx, indexKey, 0, float64(cutoff)); err != nil {
			return "", fmt.Errorf("jobstatus: prune index: %w", err)
		}
	}
	return uuid, nil
}

// Get returns the record for uuid, or ErrNotFound when it is missing or
// cannot be decoded.
func (s *Store) Get(ctx context.Context, uuid string) (*Record, error) {
	val, ok, err := s.backend.Get(ctx, RecordKey(uuid))
	if err != nil {
		return nil, fmt.Errorf("jobstatus: get status: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	rec := s.decode(uuid, val)
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// MGet returns the records for uuids in the same order. Missing or
// undecodable records are nil.
func (s *Store) MGet(ctx context.Context, uuids []string) ([]*Record, error) {
	if len(uuids) == 0 {
		return []*Record{}, nil
	}
	keys := make([]string, len(uuids))
	for i, u := range uuids {
		keys[i] = RecordKey(u)
	}
	vals, err := s.backend.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("jobstatus: mget statuses: %w", err)
	}
	out := make([]*Record, len(uuids))
	for i, u := range uuids {
		if i < len(vals) && vals[i] != nil {
			out[i] = s.decode(u, vals[i])
		}
	}
	return out, nil
}

// Set builds a fresh record from frags on top of a queued base stamped now,
// and stores it, replacing any previous value. A record whose status is not
// one of the known statuses is rejected with ErrInvalidStatus.
func (s *Store) Set(ctx context.Context, uuid string, frags ...Fragment) (*Record, error) {
	rec := NewRecord(uuid, s.now(), frags...)
	if !rec.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, rec.Status)
	}
	data, err := s.codec.Encode(rec)
	if err != nil {
		return nil, fmt.Errorf("jobstatus: encode status: %w", err)
	}
	if err := s.backend.Set(ctx, RecordKey(uuid), data, s.expireIn); err != nil {
		return nil, fmt.Errorf("jobstatus: set status: %w", err)
	}
	return rec, nil
}

// Remove deletes the record and its index entry. Removing a missing record
// is a no-op.
func (s *Store) Remove(ctx context.Context, uuid string) error {
	if err := s.backend.Del(ctx, RecordKey(uuid)); err != nil {
		return fmt.Errorf("jobstatus: remove status: %w", err)
	}
	if err := s.backend.ZRem(ctx, indexKey, uuid); err != nil {
		return fmt.Errorf("jobstatus: remove index: %w", err)
	}
	return nil
}

// Clear removes every record in rng and returns the removed ids.
func (s *Store) Clear(ctx context.Context, rng Range) ([]string, error) {
	ids, err := s.StatusIDs(ctx, rng)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := s.Remove(ctx, id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// ClearCompleted removes the completed records in rng.
func (s *Store) ClearCompleted(ctx context.Context, rng Range) ([]string, error) {
	return s.clearStatus(ctx, rng, StatusCompleted)
}

// ClearFailed removes the failed records in rng.
func (s *Store) ClearFailed(ctx context.Context, rng Range) ([]string, error) {
	return s.clearStatus(ctx, rng, StatusFailed)
}

// ClearKilled removes the killed records in rng.
func (s *Store) ClearKilled(ctx context.Context, rng Range) ([]string, error) {
	return s.clearStatus(ctx, rng, StatusKilled)
}

func (s *Store) clearStatus(ctx context.Context, rng Range, status Status) ([]string, error) {
	ids, err := s.StatusIDs(ctx, rng)
	if err != nil {
		return nil, err
	}
	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !rec.Is(status) {
			continue
		}
		if err := s.Remove(ctx, id); err != nil {
			return nil, err
		}
		removed = append(removed, id)
	}
	return removed, nil
}

// Count returns the size of the chronological index.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.backend.ZCard(ctx, indexKey)
	if err != nil {
		return 0, fmt.Errorf("jobstatus: count statuses: %w", err)
	}
	return n, nil
}

// Statuses returns the records in rng, most recent first. Ids whose record
// has expired or been removed are skipped.
func (s *Store) Statuses(ctx context.Context, rng Range) ([]*Record, error) {
	ids, err := s.StatusIDs(ctx, rng)
	if err != nil {
		return nil, err
	}
	recs, err := s.MGet(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(recs))
	for _, r := range recs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// StatusIDs returns the ids in rng, most recent first.
func (s *Store) StatusIDs(ctx context.Context, rng Range) ([]string, error) {
	start, stop := rng.Bounds()
	ids, err := s.backend.ZRevRange(ctx, indexKey, start, stop)
	if err != nil {
		return nil, fmt.Errorf("jobstatus: list status ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Kill puts uuid on the kill list. The job stops at its next Tick or At.
func (s *Store) Kill(ctx context.Context, uuid string) error {
	if err := s.backend.SAdd(ctx, killKey, uuid); err != nil {
		return fmt.Errorf("jobstatus: kill: %w", err)
	}
	return nil
}

// Killed takes uuid off the kill list.
func (s *Store) Killed(ctx context.Context, uuid string) error {
	if err := s.backend.SRem(ctx, killKey, uuid); err != nil {
		return fmt.Errorf("jobstatus: clear kill: %w", err)
	}
	return nil
}

// KillIDs returns the ids on the kill list.
func (s *Store) KillIDs(ctx context.Context) ([]string, error) {
	ids, err := s.backend.SMembers(ctx, killKey)
	if err != nil {
		return nil, fmt.Errorf("jobstatus: list kill ids: %w", err)
	}
	return ids, nil
}

// ShouldKill reports whether uuid is on the kill list.
func (s *Store) ShouldKill(ctx context.Context, uuid string) (bool, error) {
	ok, err := s.backend.SIsMember(ctx, killKey, uuid)
	if err != nil {
		return false, fmt.Errorf("jobstatus: check kill: %w", err)
	}
	return ok, nil
}

// KillAll puts every id in rng on the kill list, regardless of status, and
// returns them.
func (s *Store) KillAll(ctx context.Context, rng Range) ([]string, error) {
	ids, err := s.StatusIDs(ctx, rng)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := s.Kill(ctx, id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (s *Store) decode(uuid string, data []byte) *Record {
	rec, err := s.codec.Decode(data)
	if err != nil {
		s.logger.Warn("undecodable status record",
			slog.String("uuid", uuid),
			slog.String("codec", s.codec.Name()),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if rec.UUID == "" {
		rec.UUID = uuid
	}
	return rec
}
