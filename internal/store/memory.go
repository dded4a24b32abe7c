package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/efreitasn/bidengine/internal/domain"
)

// deadlineEntry orders auctions by a deadline (end or start time) for the
// scheduler scans.
type deadlineEntry struct {
	At        time.Time
	AuctionID string
}

// deadlineLess orders by time ascending, then auction ID ascending, so
// Ascend visits the earliest deadline first.
func deadlineLess(a, b deadlineEntry) bool {
	if !a.At.Equal(b.At) {
		return a.At.Before(b.At)
	}
	return a.AuctionID < b.AuctionID
}

// MemoryStore is a thread-safe in-memory Repository. Active auctions are
// indexed by end time and Scheduled auctions by start time in B-trees so
// the closer's scans touch only due auctions.
type MemoryStore struct {
	mu         sync.RWMutex
	auctions   map[string]*domain.Auction
	created    []string                 // auction ids in creation order
	ledger     map[string][]*domain.Bid // auction_id → bids (sequence order)
	byBidder   map[string][]*domain.Bid // bidder_id → bids (append order)
	bids       map[string]*domain.Bid   // bid_id → bid
	endIndex   *btree.BTreeG[deadlineEntry]
	startIndex *btree.BTreeG[deadlineEntry]
}

var _ Repository = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	const degree = 32
	return &MemoryStore{
		auctions:   make(map[string]*domain.Auction),
		ledger:     make(map[string][]*domain.Bid),
		byBidder:   make(map[string][]*domain.Bid),
		bids:       make(map[string]*domain.Bid),
		endIndex:   btree.NewG[deadlineEntry](degree, deadlineLess),
		startIndex: btree.NewG[deadlineEntry](degree, deadlineLess),
	}
}

// CreateAuction stores a new auction. It returns
// domain.ErrAuctionAlreadyExists if the ID is taken.
func (s *MemoryStore) CreateAuction(ctx context.Context, a *domain.Auction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.auctions[a.AuctionID]; exists {
		return domain.ErrAuctionAlreadyExists
	}
	stored := a.Clone()
	s.auctions[a.AuctionID] = stored
	s.created = append(s.created, a.AuctionID)
	s.index(nil, stored)
	return nil
}

// LoadAuction returns a copy of the stored auction.
func (s *MemoryStore) LoadAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return a.Clone(), nil
}

// LoadLeadingBid returns the bid referenced by the auction's LeadingBidID.
func (s *MemoryStore) LoadLeadingBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	if a.LeadingBidID == "" {
		return nil, nil
	}
	b, ok := s.bids[a.LeadingBidID]
	if !ok {
		return nil, nil
	}
	c := *b
	return &c, nil
}

// AppendBidAndUpdateAuction appends bid to the ledger and replaces the
// auction in one step, provided the stored version equals expectedVersion.
func (s *MemoryStore) AppendBidAndUpdateAuction(ctx context.Context, auctionID string, expectedVersion int64, bid *domain.Bid, updated *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Checked under the lock: once past this point the write cannot be
	// abandoned halfway.
	if err := ctx.Err(); err != nil {
		return err
	}
	current, err := s.checkVersion(auctionID, expectedVersion)
	if err != nil {
		return err
	}

	stored := *bid
	s.ledger[auctionID] = append(s.ledger[auctionID], &stored)
	s.byBidder[bid.BidderID] = append(s.byBidder[bid.BidderID], &stored)
	s.bids[bid.BidID] = &stored

	s.replace(current, updated, expectedVersion)
	return nil
}

// UpdateAuction replaces the auction if the stored version equals
// expectedVersion.
func (s *MemoryStore) UpdateAuction(ctx context.Context, auctionID string, expectedVersion int64, updated *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	current, err := s.checkVersion(auctionID, expectedVersion)
	if err != nil {
		return err
	}
	s.replace(current, updated, expectedVersion)
	return nil
}

// ListActiveAuctionsPastEndTime walks the end-time index up to now.
func (s *MemoryStore) ListActiveAuctionsPastEndTime(ctx context.Context, now time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return dueIDs(s.endIndex, now), nil
}

// ListScheduledAuctionsPastStartTime walks the start-time index up to now.
func (s *MemoryStore) ListScheduledAuctionsPastStartTime(ctx context.Context, now time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return dueIDs(s.startIndex, now), nil
}

// ListAuctions returns auctions newest first with optional state filter.
func (s *MemoryStore) ListAuctions(ctx context.Context, state *domain.AuctionState, page, limit int) ([]*domain.Auction, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]*domain.Auction, 0)
	for i := len(s.created) - 1; i >= 0; i-- {
		a := s.auctions[s.created[i]]
		if state != nil && a.State != *state {
			continue
		}
		filtered = append(filtered, a)
	}

	total := len(filtered)
	start := (page - 1) * limit
	if start >= total {
		return []*domain.Auction{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}

	result := make([]*domain.Auction, 0, end-start)
	for _, a := range filtered[start:end] {
		result = append(result, a.Clone())
	}
	return result, total, nil
}

// ListBids returns the auction's ledger in sequence order.
func (s *MemoryStore) ListBids(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.auctions[auctionID]; !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return copyBids(s.ledger[auctionID], false), nil
}

// ListBidsByBidder returns the bidder's bids, newest first.
func (s *MemoryStore) ListBidsByBidder(ctx context.Context, bidderID string) ([]*domain.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyBids(s.byBidder[bidderID], true), nil
}

// checkVersion must be called with s.mu held.
func (s *MemoryStore) checkVersion(auctionID string, expectedVersion int64) (*domain.Auction, error) {
	current, ok := s.auctions[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	if current.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}
	return current, nil
}

// replace must be called with s.mu held.
func (s *MemoryStore) replace(current, updated *domain.Auction, expectedVersion int64) {
	updated.Version = expectedVersion + 1
	stored := updated.Clone()
	s.auctions[stored.AuctionID] = stored
	s.index(current, stored)
}

// index moves an auction between the deadline indexes when its state or
// deadlines change. old may be nil for a new auction.
func (s *MemoryStore) index(old, updated *domain.Auction) {
	if old != nil {
		s.endIndex.Delete(deadlineEntry{At: old.EndTime, AuctionID: old.AuctionID})
		s.startIndex.Delete(deadlineEntry{At: old.StartTime, AuctionID: old.AuctionID})
	}
	switch updated.State {
	case domain.AuctionStateActive:
		s.endIndex.ReplaceOrInsert(deadlineEntry{At: updated.EndTime, AuctionID: updated.AuctionID})
	case domain.AuctionStateScheduled:
		s.startIndex.ReplaceOrInsert(deadlineEntry{At: updated.StartTime, AuctionID: updated.AuctionID})
	}
}

func dueIDs(tree *btree.BTreeG[deadlineEntry], now time.Time) []string {
	ids := make([]string, 0)
	tree.Ascend(func(e deadlineEntry) bool {
		if e.At.After(now) {
			return false
		}
		ids = append(ids, e.AuctionID)
		return true
	})
	return ids
}

func copyBids(src []*domain.Bid, reverse bool) []*domain.Bid {
	result := make([]*domain.Bid, 0, len(src))
	for i := range src {
		b := src[i]
		if reverse {
			b = src[len(src)-1-i]
		}
		c := *b
		result = append(result, &c)
	}
	return result
}
