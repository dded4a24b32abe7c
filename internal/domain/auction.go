package domain

import "time"

// AuctionState represents the lifecycle state of an auction.
type AuctionState string

const (
	AuctionStateScheduled   AuctionState = "scheduled"
	AuctionStateActive      AuctionState = "active"
	AuctionStateEndedSold   AuctionState = "ended_sold"
	AuctionStateEndedUnsold AuctionState = "ended_unsold"
	AuctionStateCancelled   AuctionState = "cancelled"
)

// Terminal reports whether no transition out of s exists.
func (s AuctionState) Terminal() bool {
	switch s {
	case AuctionStateEndedSold, AuctionStateEndedUnsold, AuctionStateCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known state.
func (s AuctionState) Valid() bool {
	switch s {
	case AuctionStateScheduled, AuctionStateActive,
		AuctionStateEndedSold, AuctionStateEndedUnsold, AuctionStateCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows from -> to.
//
//	scheduled -> active
//	active    -> ended_sold | ended_unsold
//	scheduled | active -> cancelled
func CanTransition(from, to AuctionState) bool {
	switch from {
	case AuctionStateScheduled:
		return to == AuctionStateActive || to == AuctionStateCancelled
	case AuctionStateActive:
		return to == AuctionStateEndedSold || to == AuctionStateEndedUnsold || to == AuctionStateCancelled
	}
	return false
}

// Auction is one listed item under auction. Values are copied in and out of
// the repository; the engine mutates a copy and writes it back under a
// version check.
type Auction struct {
	AuctionID       string
	SellerID        string
	Title           string
	StartingPrice   Money
	CurrentPrice    Money
	BidIncrement    Money
	ReservePrice    Money // secret
	StartTime       time.Time
	EndTime         time.Time
	State           AuctionState
	LeadingBidderID string // empty until the first accepted bid
	LeadingBidID    string
	BidCount        int64 // accepted bids; also the last assigned sequence
	AntiSniping     bool
	Extensions      int
	Version         int64
	CreatedAt       time.Time
	ClosedAt        *time.Time
}

// HasLeader reports whether at least one bid has been accepted.
func (a *Auction) HasLeader() bool {
	return a.LeadingBidderID != ""
}

// ReserveMet reports whether the public price has reached the reserve.
func (a *Auction) ReserveMet() bool {
	c, err := a.CurrentPrice.Cmp(a.ReservePrice)
	return err == nil && c >= 0
}

// MinimumNextBid returns currentPrice + bidIncrement, the lowest amount any
// new bidder may submit.
func (a *Auction) MinimumNextBid() (Money, error) {
	return a.CurrentPrice.Add(a.BidIncrement)
}

// AcceptingBids reports whether the auction is Active and now is before the end.
func (a *Auction) AcceptingBids(now time.Time) bool {
	return a.State == AuctionStateActive && now.Before(a.EndTime)
}

// Transition moves the auction to the given state, enforcing the state
// machine. It does not touch Version; the writer bumps it on persist.
func (a *Auction) Transition(to AuctionState, at time.Time) error {
	if !CanTransition(a.State, to) {
		return ErrInvalidTransition
	}
	a.State = to
	if to.Terminal() {
		closed := at
		a.ClosedAt = &closed
	}
	return nil
}

// Clone returns a deep copy.
func (a *Auction) Clone() *Auction {
	c := *a
	if a.ClosedAt != nil {
		t := *a.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}
