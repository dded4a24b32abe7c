package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/efreitasn/bidengine/internal/domain"
	"github.com/efreitasn/bidengine/internal/store"
)

// Rejection reasons carried by BidRejected events.
const (
	ReasonBelowMinimum  = "bid_too_low"
	ReasonAuctionClosed = "auction_not_active"
	ReasonSelfBidding   = "self_bidding"
	ReasonCurrency      = "currency_mismatch"
)

// AntiSniping extends an auction's end time when a bid lands close to it.
// A bid accepted less than Window before the end pushes the end out by
// Window, at most MaxExtensions times per auction.
type AntiSniping struct {
	Window        time.Duration
	MaxExtensions int
}

// apply extends a's end time if the rule fires at now. It reports whether
// the end time moved.
func (p AntiSniping) apply(a *domain.Auction, now time.Time) bool {
	if !a.AntiSniping || p.Window <= 0 || a.Extensions >= p.MaxExtensions {
		return false
	}
	if a.EndTime.Sub(now) >= p.Window {
		return false
	}
	a.EndTime = a.EndTime.Add(p.Window)
	a.Extensions++
	return true
}

// Config tunes the engine.
type Config struct {
	MaxRetries  int           // version-conflict retries before Busy
	SlotTimeout time.Duration // wait for the per-auction slot before Busy
	AntiSniping AntiSniping
}

// Engine serializes bid submissions per auction, resolves them against the
// standing leader, persists the outcome and publishes events.
type Engine struct {
	repo    store.Repository
	slots   *SlotManager
	emitter Emitter
	cfg     Config
	logger  *slog.Logger

	now   func() time.Time
	newID func() string
}

// New creates an Engine. A nil emitter discards events.
func New(repo store.Repository, emitter Emitter, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.SlotTimeout <= 0 {
		cfg.SlotTimeout = 2 * time.Second
	}
	return &Engine{
		repo:    repo,
		slots:   NewSlotManager(),
		emitter: emitter,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		newID:   func() string { return ulid.Make().String() },
	}
}

// AntiSniping returns the configured anti-sniping rule.
func (e *Engine) AntiSniping() AntiSniping {
	return e.cfg.AntiSniping
}

// SubmitBid places a bid on an auction. Rejections are returned as a
// *domain.RejectedBidError carrying the minimum acceptable amount and
// wrapping *domain.BidTooLowError, domain.ErrSelfBidding,
// domain.ErrAuctionNotActive or domain.ErrCurrencyMismatch. domain.ErrBusy
// means the slot could not be acquired or retries were exhausted.
func (e *Engine) SubmitBid(ctx context.Context, auctionID, bidderID string, amount domain.Money, isProxy bool) (*domain.BidReceipt, error) {
	req := domain.BidRequest{
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		IsProxy:   isProxy,
	}

	receipt, events, err := e.submit(ctx, req)
	// Events go out after the slot is released.
	for _, ev := range events {
		e.emit(ctx, ev)
	}
	return receipt, err
}

func (e *Engine) submit(ctx context.Context, req domain.BidRequest) (*domain.BidReceipt, []domain.Event, error) {
	release, err := e.slots.Acquire(ctx, req.AuctionID, e.cfg.SlotTimeout)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		a, err := e.repo.LoadAuction(ctx, req.AuctionID)
		if err != nil {
			return nil, nil, err
		}
		now := e.now()

		minimum, err := a.MinimumNextBid()
		if err != nil {
			return nil, nil, err
		}
		if a.SellerID == req.BidderID {
			return e.rejected(req, domain.ErrSelfBidding, minimum, now)
		}
		if !a.AcceptingBids(now) {
			return e.rejected(req, domain.ErrAuctionNotActive, minimum, now)
		}

		leading, err := e.repo.LoadLeadingBid(ctx, req.AuctionID)
		if err != nil {
			return nil, nil, err
		}

		res, err := Resolve(a, leading, req, e.newID(), now)
		if err != nil {
			var tooLow *domain.BidTooLowError
			switch {
			case errors.As(err, &tooLow):
				return e.rejected(req, err, tooLow.Minimum, now)
			case errors.Is(err, domain.ErrCurrencyMismatch):
				return e.rejected(req, err, minimum, now)
			}
			return nil, nil, err
		}

		if e.cfg.AntiSniping.apply(res.Auction, now) {
			e.logger.Info("auction extended",
				"auction_id", a.AuctionID,
				"end_time", res.Auction.EndTime,
				"extensions", res.Auction.Extensions,
			)
		}

		err = e.repo.AppendBidAndUpdateAuction(ctx, a.AuctionID, a.Version, res.Bid, res.Auction)
		if errors.Is(err, domain.ErrVersionConflict) {
			e.logger.Debug("bid version conflict",
				"auction_id", a.AuctionID,
				"attempt", attempt,
			)
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			return nil, nil, err
		}

		e.logger.Debug("bid resolved",
			"auction_id", a.AuctionID,
			"bid_id", res.Bid.BidID,
			"outcome", res.Bid.Outcome,
			"current_price", res.Auction.CurrentPrice.String(),
		)
		return receiptFor(res), acceptedEvents(res, now), nil
	}

	e.logger.Warn("bid retries exhausted",
		"auction_id", req.AuctionID,
		"bidder_id", req.BidderID,
		"attempts", e.cfg.MaxRetries,
	)
	return nil, nil, domain.ErrBusy
}

// CancelAuction moves a Scheduled or Active auction to Cancelled. Only the
// seller may cancel.
func (e *Engine) CancelAuction(ctx context.Context, auctionID, sellerID string) (*domain.Auction, error) {
	var cancelled *domain.Auction
	err := e.mutate(ctx, auctionID, func(a *domain.Auction, now time.Time) (bool, error) {
		cancelled = nil
		if a.SellerID != sellerID {
			return false, domain.ErrNotSeller
		}
		if err := a.Transition(domain.AuctionStateCancelled, now); err != nil {
			return false, err
		}
		cancelled = a
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	e.emit(ctx, domain.AuctionCancelled{
		AuctionID:  cancelled.AuctionID,
		SellerID:   cancelled.SellerID,
		OccurredAt: *cancelled.ClosedAt,
	})
	return cancelled, nil
}

// mutate runs fn against a fresh copy of the auction under its slot and
// writes the result back, retrying on version conflicts. fn returns false
// to skip the write.
func (e *Engine) mutate(ctx context.Context, auctionID string, fn func(a *domain.Auction, now time.Time) (bool, error)) error {
	release, err := e.slots.Acquire(ctx, auctionID, e.cfg.SlotTimeout)
	if err != nil {
		return err
	}
	defer release()

	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		a, err := e.repo.LoadAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		version := a.Version

		write, err := fn(a, e.now())
		if err != nil || !write {
			return err
		}

		err = e.repo.UpdateAuction(ctx, auctionID, version, a)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		return err
	}
	return domain.ErrBusy
}

func (e *Engine) rejected(req domain.BidRequest, cause error, minimum domain.Money, now time.Time) (*domain.BidReceipt, []domain.Event, error) {
	reason, outcome := rejection(cause)
	ev := domain.BidRejected{
		AuctionID:     req.AuctionID,
		BidderID:      req.BidderID,
		Reason:        reason,
		Outcome:       outcome,
		MinAcceptable: minimum,
		OccurredAt:    now,
	}
	return nil, []domain.Event{ev}, &domain.RejectedBidError{Err: cause, Outcome: outcome, Minimum: minimum}
}

func rejection(cause error) (string, domain.BidOutcome) {
	switch {
	case errors.Is(cause, domain.ErrBidTooLow):
		return ReasonBelowMinimum, domain.BidOutcomeRejectedBelowMinimum
	case errors.Is(cause, domain.ErrAuctionNotActive):
		return ReasonAuctionClosed, domain.BidOutcomeRejectedAuctionClosed
	case errors.Is(cause, domain.ErrSelfBidding):
		return ReasonSelfBidding, ""
	}
	return ReasonCurrency, ""
}

func (e *Engine) emit(ctx context.Context, ev domain.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(ctx, ev)
}

func receiptFor(res *Resolution) *domain.BidReceipt {
	return &domain.BidReceipt{
		Accepted:       res.Bid.Outcome.Accepted(),
		BidID:          res.Bid.BidID,
		Outcome:        res.Bid.Outcome,
		ResultingPrice: res.Auction.CurrentPrice,
		MinimumNextBid: res.MinimumNextBid,
		Leading:        res.Bid.Outcome == domain.BidOutcomeLeading,
		EndTime:        res.Auction.EndTime,
	}
}

func acceptedEvents(res *Resolution, now time.Time) []domain.Event {
	events := []domain.Event{domain.BidAccepted{
		AuctionID:  res.Bid.AuctionID,
		BidID:      res.Bid.BidID,
		BidderID:   res.Bid.BidderID,
		NewPrice:   res.Auction.CurrentPrice,
		Leading:    res.Bid.Outcome == domain.BidOutcomeLeading,
		OccurredAt: now,
	}}
	if res.PreviousLeaderID != "" {
		events = append(events, domain.OutbidNotice{
			AuctionID:        res.Bid.AuctionID,
			PreviousLeaderID: res.PreviousLeaderID,
			NewPrice:         res.Auction.CurrentPrice,
			OccurredAt:       now,
		})
	}
	return events
}
