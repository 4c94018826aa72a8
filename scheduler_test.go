package jobstatus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_FireEnqueues(t *testing.T) {
	client, gw, store := newTestClient(t)
	s := NewScheduler(client, nil)

	_, err := s.Add("@every 1h", "", "Import", map[string]any{"file": "b.csv"})
	require.NoError(t, err)
	_, err = s.Add("*/5 * * * *", "nightly", "Export", nil)
	require.NoError(t, err)

	entries := s.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		s.fire(e)
	}

	require.Len(t, gw.queued, 2)
	queues := []string{gw.queued[0].queue, gw.queued[1].queue}
	assert.ElementsMatch(t, []string{"imports", "nightly"}, queues)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestScheduler_AddValidates(t *testing.T) {
	client, _, _ := newTestClient(t)
	s := NewScheduler(client, nil)

	_, err := s.Add("not a schedule", "", "Export", nil)
	assert.Error(t, err)

	_, err = s.Add("@every 1h", "", "Missing", nil)
	assert.ErrorIs(t, err, ErrUnknownJob)

	id, err := s.Add("@every 1h", "", "Export", nil)
	require.NoError(t, err)
	s.Remove(id)
	assert.Empty(t, s.Entries())
}

func TestScheduler_StartStop(t *testing.T) {
	client, _, _ := newTestClient(t)
	s := NewScheduler(client, nil)
	_, err := s.Add("@every 1h", "", "Export", nil)
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
