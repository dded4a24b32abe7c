package domain

import "time"

// EventType names a domain event. Webhook subscriptions use these values.
type EventType string

const (
	EventBidAccepted      EventType = "bid.accepted"
	EventBidRejected      EventType = "bid.rejected"
	EventOutbidNotice     EventType = "bid.outbid"
	EventAuctionSold      EventType = "auction.sold"
	EventAuctionUnsold    EventType = "auction.unsold"
	EventAuctionCancelled EventType = "auction.cancelled"
)

// EventTypes lists every event type in a stable order.
var EventTypes = []EventType{
	EventBidAccepted,
	EventBidRejected,
	EventOutbidNotice,
	EventAuctionSold,
	EventAuctionUnsold,
	EventAuctionCancelled,
}

// Event is published by the engine after a state change commits.
type Event interface {
	Type() EventType
	AuctionRef() string
	// Recipients are the subscriber ids the event is addressed to.
	Recipients() []string
	At() time.Time
}

type BidAccepted struct {
	AuctionID  string    `json:"auction_id"`
	BidID      string    `json:"bid_id"`
	BidderID   string    `json:"bidder_id"`
	NewPrice   Money     `json:"new_price"`
	Leading    bool      `json:"leading"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e BidAccepted) Type() EventType      { return EventBidAccepted }
func (e BidAccepted) AuctionRef() string   { return e.AuctionID }
func (e BidAccepted) Recipients() []string { return []string{e.BidderID} }
func (e BidAccepted) At() time.Time        { return e.OccurredAt }

type BidRejected struct {
	AuctionID     string     `json:"auction_id"`
	BidderID      string     `json:"bidder_id"`
	Reason        string     `json:"reason"`
	Outcome       BidOutcome `json:"outcome,omitempty"`
	MinAcceptable Money      `json:"min_acceptable"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

func (e BidRejected) Type() EventType      { return EventBidRejected }
func (e BidRejected) AuctionRef() string   { return e.AuctionID }
func (e BidRejected) Recipients() []string { return []string{e.BidderID} }
func (e BidRejected) At() time.Time        { return e.OccurredAt }

type OutbidNotice struct {
	AuctionID        string    `json:"auction_id"`
	PreviousLeaderID string    `json:"previous_leader_id"`
	NewPrice         Money     `json:"new_price"`
	OccurredAt       time.Time `json:"occurred_at"`
}

func (e OutbidNotice) Type() EventType      { return EventOutbidNotice }
func (e OutbidNotice) AuctionRef() string   { return e.AuctionID }
func (e OutbidNotice) Recipients() []string { return []string{e.PreviousLeaderID} }
func (e OutbidNotice) At() time.Time        { return e.OccurredAt }

type AuctionSold struct {
	AuctionID  string    `json:"auction_id"`
	SellerID   string    `json:"seller_id"`
	WinnerID   string    `json:"winner_id"`
	FinalPrice Money     `json:"final_price"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e AuctionSold) Type() EventType      { return EventAuctionSold }
func (e AuctionSold) AuctionRef() string   { return e.AuctionID }
func (e AuctionSold) Recipients() []string { return []string{e.WinnerID, e.SellerID} }
func (e AuctionSold) At() time.Time        { return e.OccurredAt }

type AuctionUnsold struct {
	AuctionID  string    `json:"auction_id"`
	SellerID   string    `json:"seller_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e AuctionUnsold) Type() EventType      { return EventAuctionUnsold }
func (e AuctionUnsold) AuctionRef() string   { return e.AuctionID }
func (e AuctionUnsold) Recipients() []string { return []string{e.SellerID} }
func (e AuctionUnsold) At() time.Time        { return e.OccurredAt }

type AuctionCancelled struct {
	AuctionID  string    `json:"auction_id"`
	SellerID   string    `json:"seller_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e AuctionCancelled) Type() EventType      { return EventAuctionCancelled }
func (e AuctionCancelled) AuctionRef() string   { return e.AuctionID }
func (e AuctionCancelled) Recipients() []string { return []string{e.SellerID} }
func (e AuctionCancelled) At() time.Time        { return e.OccurredAt }
