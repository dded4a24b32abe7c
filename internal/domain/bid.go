package domain

import "time"

// BidOutcome is the result recorded for a submitted bid.
type BidOutcome string

const (
	BidOutcomeLeading               BidOutcome = "accepted_leading"
	BidOutcomeOutbid                BidOutcome = "accepted_outbid"
	BidOutcomeRejectedBelowMinimum  BidOutcome = "rejected_below_minimum"
	BidOutcomeRejectedAuctionClosed BidOutcome = "rejected_auction_closed"
)

// Accepted reports whether the outcome produced a ledger entry.
func (o BidOutcome) Accepted() bool {
	return o == BidOutcomeLeading || o == BidOutcomeOutbid
}

// BidRequest is a not-yet-resolved submission.
type BidRequest struct {
	AuctionID string
	BidderID  string
	Amount    Money
	IsProxy   bool
}

// Bid is an immutable ledger entry. Once persisted it is never mutated or
// deleted.
type Bid struct {
	BidID           string
	AuctionID       string
	BidderID        string
	SubmittedAmount Money // ceiling for proxy bids, exact amount otherwise
	IsProxy         bool
	ResultingPrice  Money
	AcceptedAt      time.Time
	Sequence        int64
	Outcome         BidOutcome
}

// Ceiling is the most this bid is willing to pay.
func (b *Bid) Ceiling() Money {
	return b.SubmittedAmount
}

// BidReceipt is returned to the caller of a submission.
type BidReceipt struct {
	Accepted       bool
	BidID          string
	Outcome        BidOutcome
	ResultingPrice Money
	MinimumNextBid Money
	Leading        bool
	EndTime        time.Time
}
