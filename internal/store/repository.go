package store

import (
	"context"
	"time"

	"github.com/efreitasn/bidengine/internal/domain"
)

// Repository is the persistence boundary of the bidding engine. Every
// method returns copies; mutating a returned value never changes stored
// state.
//
// Implementations must make AppendBidAndUpdateAuction and UpdateAuction
// atomic compare-and-swap writes on Auction.Version: the write succeeds only
// when the stored version equals expectedVersion, in which case the stored
// version becomes expectedVersion+1 (also written back to updated.Version).
// A mismatch returns domain.ErrVersionConflict. I/O failures are wrapped
// with domain.ErrStorageUnavailable.
type Repository interface {
	CreateAuction(ctx context.Context, a *domain.Auction) error
	LoadAuction(ctx context.Context, auctionID string) (*domain.Auction, error)
	// LoadLeadingBid returns nil, nil when the auction has no accepted bid.
	LoadLeadingBid(ctx context.Context, auctionID string) (*domain.Bid, error)
	AppendBidAndUpdateAuction(ctx context.Context, auctionID string, expectedVersion int64, bid *domain.Bid, updated *domain.Auction) error
	UpdateAuction(ctx context.Context, auctionID string, expectedVersion int64, updated *domain.Auction) error

	// ListActiveAuctionsPastEndTime returns ids of Active auctions whose
	// end time is <= now, earliest end first.
	ListActiveAuctionsPastEndTime(ctx context.Context, now time.Time) ([]string, error)
	// ListScheduledAuctionsPastStartTime returns ids of Scheduled auctions
	// whose start time is <= now, earliest start first.
	ListScheduledAuctionsPastStartTime(ctx context.Context, now time.Time) ([]string, error)

	// ListAuctions returns auctions newest first. A nil state matches all.
	// Pagination is 1-based; total counts matches before pagination.
	ListAuctions(ctx context.Context, state *domain.AuctionState, page, limit int) ([]*domain.Auction, int, error)
	// ListBids returns an auction's ledger in sequence order.
	ListBids(ctx context.Context, auctionID string) ([]*domain.Bid, error)
	// ListBidsByBidder returns a bidder's accepted bids, newest first.
	ListBidsByBidder(ctx context.Context, bidderID string) ([]*domain.Bid, error)
}
