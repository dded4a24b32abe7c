package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/efreitasn/bidengine/internal/domain"
)

func TestSlotManager_ExclusivePerAuction(t *testing.T) {
	m := NewSlotManager()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), "a-1", 5*time.Second)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	check.Equal(t, int32(1), maxSeen.Load())
	check.Equal(t, 0, m.Len())
}

func TestSlotManager_IndependentAuctions(t *testing.T) {
	m := NewSlotManager()

	r1, err := m.Acquire(context.Background(), "a-1", time.Second)
	assert.NoError(t, err)
	r2, err := m.Acquire(context.Background(), "a-2", 10*time.Millisecond)
	assert.NoError(t, err)
	check.Equal(t, 2, m.Len())

	r1()
	r2()
	check.Equal(t, 0, m.Len())
}

func TestSlotManager_TimeoutIsBusy(t *testing.T) {
	m := NewSlotManager()
	release, err := m.Acquire(context.Background(), "a-1", time.Second)
	assert.NoError(t, err)

	_, err = m.Acquire(context.Background(), "a-1", 10*time.Millisecond)
	check.True(t, errors.Is(err, domain.ErrBusy))
	check.Equal(t, 1, m.Len())

	release()
	// A second release is a no-op.
	release()
	check.Equal(t, 0, m.Len())
}

func TestSlotManager_ContextCancelled(t *testing.T) {
	m := NewSlotManager()
	release, err := m.Acquire(context.Background(), "a-1", time.Second)
	assert.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, "a-1", time.Minute)
	check.True(t, errors.Is(err, context.DeadlineExceeded))
}
