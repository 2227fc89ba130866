package checker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"pricewatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore tracks product listings across goroutines; the scheduler's
// cycles run concurrently with the test's assertions.
type countingStore struct {
	lists atomic.Int32
}

func (s *countingStore) ListAllProducts(ctx context.Context) ([]*model.Product, error) {
	s.lists.Add(1)
	return nil, nil
}

func (s *countingStore) UpdateProduct(ctx context.Context, id string, upd model.ProductUpdate) error {
	return nil
}

func (s *countingStore) AppendHistory(ctx context.Context, entry model.PriceHistoryEntry) error {
	return nil
}

func TestSchedulerRunsAndStops(t *testing.T) {
	st := &countingStore{}
	chk := New(st, &fakeUsers{}, &fakeExtractor{}, &fakeSender{})
	s := NewScheduler(chk, 20*time.Millisecond)

	s.Start()
	assert.True(t, s.IsRunning())
	require.GreaterOrEqual(t, st.lists.Load(), int32(1), "first cycle runs synchronously on start")

	// at least one ticker-driven cycle follows
	require.Eventually(t, func() bool {
		return st.lists.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())

	// let any in-flight cycle drain, then verify the loop is really gone
	time.Sleep(60 * time.Millisecond)
	after := st.lists.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, after, st.lists.Load(), "no cycles after stop")
}

func TestSchedulerStopIdempotent(t *testing.T) {
	st := &countingStore{}
	chk := New(st, &fakeUsers{}, &fakeExtractor{}, &fakeSender{})
	s := NewScheduler(chk, time.Hour)

	s.Start()
	s.Stop()

	assert.NotPanics(t, func() { s.Stop() })
	assert.False(t, s.IsRunning())
}

func TestSchedulerStartWhileRunning(t *testing.T) {
	st := &countingStore{}
	chk := New(st, &fakeUsers{}, &fakeExtractor{}, &fakeSender{})
	s := NewScheduler(chk, time.Hour)

	s.Start()
	defer s.Stop()
	first := st.lists.Load()

	// second Start must not launch a second loop or rerun the first cycle
	s.Start()
	assert.Equal(t, first, st.lists.Load())
	assert.True(t, s.IsRunning())
}
