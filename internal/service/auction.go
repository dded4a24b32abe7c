package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/bidengine/internal/domain"
	"github.com/efreitasn/bidengine/internal/engine"
	"github.com/efreitasn/bidengine/internal/store"
)

// ValidAuctionStates lists all valid auction state values for validation.
var ValidAuctionStates = map[domain.AuctionState]bool{
	domain.AuctionStateScheduled:   true,
	domain.AuctionStateActive:      true,
	domain.AuctionStateEndedSold:   true,
	domain.AuctionStateEndedUnsold: true,
	domain.AuctionStateCancelled:   true,
}

const maxTitleLength = 200

// CreateAuctionRequest represents the input for listing an item.
type CreateAuctionRequest struct {
	SellerID      string
	Title         string
	StartingPrice domain.Money
	BidIncrement  domain.Money
	ReservePrice  domain.Money
	StartTime     *time.Time // nil starts now
	EndTime       time.Time
	AntiSniping   *bool // nil uses the configured default
}

// BidderBid is one of a bidder's ledger entries with its live standing.
type BidderBid struct {
	Bid          *domain.Bid
	Winning      bool
	AuctionState domain.AuctionState
}

// AuctionService handles auction creation, queries, bidding and
// cancellation on top of the engine.
type AuctionService struct {
	repo               store.Repository
	engine             *engine.Engine
	antiSnipingDefault bool
	now                func() time.Time
}

// NewAuctionService creates a new AuctionService with the given dependencies.
func NewAuctionService(repo store.Repository, eng *engine.Engine, antiSnipingDefault bool) *AuctionService {
	return &AuctionService{
		repo:               repo,
		engine:             eng,
		antiSnipingDefault: antiSnipingDefault,
		now:                time.Now,
	}
}

// CreateAuction validates the request and stores a new auction. It starts
// Active when its start time has already been reached, else Scheduled.
func (s *AuctionService) CreateAuction(ctx context.Context, req CreateAuctionRequest) (*domain.Auction, error) {
	if !participantIDRegex.MatchString(req.SellerID) {
		return nil, &domain.ValidationError{Message: "seller_id must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	if req.Title == "" || len(req.Title) > maxTitleLength {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("title must be between 1 and %d characters", maxTitleLength),
		}
	}
	if req.StartingPrice.Currency == "" {
		return nil, &domain.ValidationError{Message: "starting_price.currency is required"}
	}
	if !req.StartingPrice.SameCurrency(req.BidIncrement, req.ReservePrice) {
		return nil, domain.ErrCurrencyMismatch
	}
	if req.StartingPrice.Amount < 0 || req.ReservePrice.Amount < 0 {
		return nil, &domain.ValidationError{Message: "prices must be non-negative"}
	}
	if req.BidIncrement.Amount <= 0 {
		return nil, &domain.ValidationError{Message: "bid_increment must be positive"}
	}
	if _, err := req.StartingPrice.Add(req.BidIncrement); err != nil {
		return nil, &domain.ValidationError{Message: "starting_price plus bid_increment is out of range"}
	}

	now := s.now().UTC()
	start := now
	if req.StartTime != nil {
		start = req.StartTime.UTC()
	}
	end := req.EndTime.UTC()
	if !end.After(start) {
		return nil, &domain.ValidationError{Message: "end_time must be after start_time"}
	}
	if !end.After(now) {
		return nil, &domain.ValidationError{Message: "end_time must be in the future"}
	}

	antiSniping := s.antiSnipingDefault
	if req.AntiSniping != nil {
		antiSniping = *req.AntiSniping
	}

	state := domain.AuctionStateScheduled
	if !start.After(now) {
		state = domain.AuctionStateActive
	}

	a := &domain.Auction{
		AuctionID:     uuid.New().String(),
		SellerID:      req.SellerID,
		Title:         req.Title,
		StartingPrice: req.StartingPrice,
		CurrentPrice:  req.StartingPrice,
		BidIncrement:  req.BidIncrement,
		ReservePrice:  req.ReservePrice,
		StartTime:     start,
		EndTime:       end,
		State:         state,
		AntiSniping:   antiSniping,
		CreatedAt:     now,
	}
	if err := s.repo.CreateAuction(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetAuction retrieves an auction by ID.
func (s *AuctionService) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	return s.repo.LoadAuction(ctx, auctionID)
}

// ListAuctions returns a paginated list of auctions, optionally filtered by state.
func (s *AuctionService) ListAuctions(ctx context.Context, state *domain.AuctionState, page, limit int) ([]*domain.Auction, int, error) {
	if state != nil && !ValidAuctionStates[*state] {
		return nil, 0, &domain.ValidationError{
			Message: fmt.Sprintf("Invalid status filter: '%s'. Must be one of: scheduled, active, ended_sold, ended_unsold, cancelled", *state),
		}
	}
	if page < 1 {
		return nil, 0, &domain.ValidationError{Message: "page must be >= 1"}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{Message: "limit must be between 1 and 100"}
	}
	return s.repo.ListAuctions(ctx, state, page, limit)
}

// SubmitBid validates the bidder and hands the bid to the engine. Amounts
// are checked by the engine so that a seller is refused as a self-bidder
// whatever the amount.
func (s *AuctionService) SubmitBid(ctx context.Context, auctionID, bidderID string, amount domain.Money, isProxy bool) (*domain.BidReceipt, error) {
	if !participantIDRegex.MatchString(bidderID) {
		return nil, &domain.ValidationError{Message: "bidder_id must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	return s.engine.SubmitBid(ctx, auctionID, bidderID, amount, isProxy)
}

// CancelAuction cancels a Scheduled or Active auction on behalf of its seller.
func (s *AuctionService) CancelAuction(ctx context.Context, auctionID, sellerID string) (*domain.Auction, error) {
	if !participantIDRegex.MatchString(sellerID) {
		return nil, &domain.ValidationError{Message: "seller_id must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	return s.engine.CancelAuction(ctx, auctionID, sellerID)
}

// BidHistory returns an auction's ledger in sequence order.
func (s *AuctionService) BidHistory(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	return s.repo.ListBids(ctx, auctionID)
}

// BidderBids returns a bidder's bids, newest first. A bid is winning when
// it is the auction's current leading bid.
func (s *AuctionService) BidderBids(ctx context.Context, bidderID string) ([]BidderBid, error) {
	if !participantIDRegex.MatchString(bidderID) {
		return nil, &domain.ValidationError{Message: "bidder_id must match ^[a-zA-Z0-9_-]{1,64}$"}
	}

	bids, err := s.repo.ListBidsByBidder(ctx, bidderID)
	if err != nil {
		return nil, err
	}

	auctions := make(map[string]*domain.Auction)
	result := make([]BidderBid, 0, len(bids))
	for _, b := range bids {
		a, ok := auctions[b.AuctionID]
		if !ok {
			a, err = s.repo.LoadAuction(ctx, b.AuctionID)
			if err != nil {
				return nil, err
			}
			auctions[b.AuctionID] = a
		}
		result = append(result, BidderBid{
			Bid:          b,
			Winning:      a.LeadingBidID == b.BidID,
			AuctionState: a.State,
		})
	}
	return result, nil
}

// CloseExpired runs one closing pass at the current time.
func (s *AuctionService) CloseExpired(ctx context.Context) ([]string, error) {
	return s.engine.CloseExpiredAuctions(ctx, s.now())
}
