package engine

import (
	"context"
	"sync"
	"time"

	"github.com/efreitasn/bidengine/internal/domain"
)

// slot is a one-token semaphore for a single auction.
type slot struct {
	token chan struct{}
	refs  int // holders plus waiters
}

// SlotManager hands out per-auction resolution slots so that at most one
// resolution runs per auction id within this process. Slots are created on
// first use and dropped once nobody holds or waits on them.
type SlotManager struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// NewSlotManager creates an empty SlotManager.
func NewSlotManager() *SlotManager {
	return &SlotManager{
		slots: make(map[string]*slot),
	}
}

// Acquire waits up to timeout for the auction's slot. It returns
// domain.ErrBusy on timeout, or the context's error if ctx ends first. The
// returned release func must be called exactly once.
func (m *SlotManager) Acquire(ctx context.Context, auctionID string, timeout time.Duration) (func(), error) {
	s := m.ref(auctionID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.token <- struct{}{}:
	case <-ctx.Done():
		m.unref(auctionID, s)
		return nil, ctx.Err()
	case <-timer.C:
		m.unref(auctionID, s)
		return nil, domain.ErrBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.token
			m.unref(auctionID, s)
		})
	}, nil
}

// Len returns the number of live slots. Useful for testing.
func (m *SlotManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

func (m *SlotManager) ref(auctionID string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[auctionID]
	if !ok {
		s = &slot{token: make(chan struct{}, 1)}
		m.slots[auctionID] = s
	}
	s.refs++
	return s
}

func (m *SlotManager) unref(auctionID string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(m.slots, auctionID)
	}
}
