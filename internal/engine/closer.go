package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/efreitasn/bidengine/internal/domain"
)

// CloseExpiredAuctions finalizes every Active auction whose end time is at
// or before now: Ended-Sold when a leader exists and the reserve is met,
// Ended-Unsold otherwise. It returns the ids it closed. Auctions already
// closed, or extended past now in the meantime, are skipped, so repeated
// calls are no-ops.
//
// Failures on one auction do not stop the others; they are joined into the
// returned error.
func (e *Engine) CloseExpiredAuctions(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := e.repo.ListActiveAuctionsPastEndTime(ctx, now)
	if err != nil {
		return nil, err
	}

	closed := make([]string, 0, len(ids))
	var errs []error
	for _, id := range ids {
		var final *domain.Auction
		err := e.mutate(ctx, id, func(a *domain.Auction, _ time.Time) (bool, error) {
			final = nil
			if a.State != domain.AuctionStateActive || a.EndTime.After(now) {
				return false, nil
			}
			to := domain.AuctionStateEndedUnsold
			if a.HasLeader() && a.ReserveMet() {
				to = domain.AuctionStateEndedSold
			}
			if err := a.Transition(to, now); err != nil {
				return false, err
			}
			final = a
			return true, nil
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if final == nil {
			continue
		}

		closed = append(closed, id)
		e.emit(ctx, closedEvent(final, now))
	}
	return closed, errors.Join(errs...)
}

// ActivateScheduled moves every Scheduled auction whose start time is at or
// before now to Active and returns their ids.
func (e *Engine) ActivateScheduled(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := e.repo.ListScheduledAuctionsPastStartTime(ctx, now)
	if err != nil {
		return nil, err
	}

	activated := make([]string, 0, len(ids))
	var errs []error
	for _, id := range ids {
		var done bool
		err := e.mutate(ctx, id, func(a *domain.Auction, _ time.Time) (bool, error) {
			done = false
			if a.State != domain.AuctionStateScheduled || a.StartTime.After(now) {
				return false, nil
			}
			if err := a.Transition(domain.AuctionStateActive, now); err != nil {
				return false, err
			}
			done = true
			return true, nil
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if done {
			activated = append(activated, id)
		}
	}
	return activated, errors.Join(errs...)
}

func closedEvent(a *domain.Auction, now time.Time) domain.Event {
	if a.State == domain.AuctionStateEndedSold {
		return domain.AuctionSold{
			AuctionID:  a.AuctionID,
			SellerID:   a.SellerID,
			WinnerID:   a.LeadingBidderID,
			FinalPrice: a.CurrentPrice,
			OccurredAt: now,
		}
	}
	return domain.AuctionUnsold{
		AuctionID:  a.AuctionID,
		SellerID:   a.SellerID,
		OccurredAt: now,
	}
}

// Closer periodically activates due Scheduled auctions and closes expired
// Active ones.
type Closer struct {
	interval time.Duration
	engine   *Engine
	logger   *slog.Logger
}

// NewCloser creates a Closer that ticks at the given interval.
func NewCloser(interval time.Duration, engine *Engine, logger *slog.Logger) *Closer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Closer{
		interval: interval,
		engine:   engine,
		logger:   logger,
	}
}

// Run ticks until ctx is cancelled. It always returns nil so it can run in
// an errgroup next to the HTTP server.
func (c *Closer) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			c.tick(ctx, t)
		}
	}
}

// tick activates before closing so an auction whose whole window has
// already passed is finalized in a single pass.
func (c *Closer) tick(ctx context.Context, now time.Time) {
	activated, err := c.engine.ActivateScheduled(ctx, now)
	if err != nil {
		c.logger.Error("activate scheduled auctions", "error", err)
	}
	if len(activated) > 0 {
		c.logger.Info("auctions activated", "count", len(activated), "auction_ids", activated)
	}

	closed, err := c.engine.CloseExpiredAuctions(ctx, now)
	if err != nil {
		c.logger.Error("close expired auctions", "error", err)
	}
	if len(closed) > 0 {
		c.logger.Info("auctions closed", "count", len(closed), "auction_ids", closed)
	}
}
