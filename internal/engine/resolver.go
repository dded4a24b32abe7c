package engine

import (
	"time"

	"github.com/efreitasn/bidengine/internal/domain"
)

// Resolution is the proposed result of applying one bid to an auction. The
// caller persists Bid and Auction together under a version check.
type Resolution struct {
	Auction *domain.Auction // proposed state; Version is left untouched
	Bid     *domain.Bid     // ledger entry to append

	// PreviousLeaderID is set when leadership moved to a different bidder.
	PreviousLeaderID string

	// MinimumNextBid is the proposed auction's price plus one increment.
	MinimumNextBid domain.Money
}

// Resolve applies the proxy (second-price) bidding rules to a new bid. It
// performs no I/O and does not mutate its arguments.
//
// Let P be the current price, I the increment and C the standing leader's
// ceiling. A bid from anyone but the leader must be at least P+I.
//
//	no leader:  the bid leads; price = amount (manual) or stays at P (proxy)
//	amount > C: the bid leads; price = amount (manual) or min(amount, max(C+I, P+I)) (proxy)
//	amount <= C: the leader keeps the lead; price = min(C, amount+I) and the
//	            bid is recorded as outbid
//
// Equal amounts fall into the last case: the earlier bid keeps priority.
// A leader may only raise their own ceiling, by at least one increment; a
// proxy raise leaves the price alone while a manual raise moves it to the
// amount.
func Resolve(a *domain.Auction, leading *domain.Bid, req domain.BidRequest, bidID string, at time.Time) (*Resolution, error) {
	if !a.CurrentPrice.SameCurrency(req.Amount, a.BidIncrement) {
		return nil, domain.ErrCurrencyMismatch
	}

	price := a.CurrentPrice
	inc := a.BidIncrement
	amount := req.Amount
	minimum, err := a.MinimumNextBid()
	if err != nil {
		return nil, err
	}

	raise := leading != nil && leading.BidderID == req.BidderID
	if raise {
		ceilingStep, err := leading.Ceiling().Add(inc)
		if err != nil {
			return nil, err
		}
		if minimum, err = domain.MaxMoney(minimum, ceilingStep); err != nil {
			return nil, err
		}
	}
	c, err := amount.Cmp(minimum)
	if err != nil {
		return nil, err
	}
	if c < 0 {
		return nil, &domain.BidTooLowError{Minimum: minimum}
	}

	next := a.Clone()
	bid := &domain.Bid{
		BidID:           bidID,
		AuctionID:       a.AuctionID,
		BidderID:        req.BidderID,
		SubmittedAmount: amount,
		IsProxy:         req.IsProxy,
		AcceptedAt:      at,
		Sequence:        a.BidCount + 1,
	}
	res := &Resolution{Auction: next, Bid: bid}

	if raise || leading == nil {
		if !req.IsProxy {
			price = amount
		}
		lead(next, bid)
	} else {
		ceiling := leading.Ceiling()
		c, err := amount.Cmp(ceiling)
		if err != nil {
			return nil, err
		}
		if c > 0 {
			if req.IsProxy {
				price, err = proxyPrice(amount, ceiling, price, inc)
			} else {
				price = amount
			}
			res.PreviousLeaderID = leading.BidderID
			lead(next, bid)
		} else {
			price, err = counterPrice(ceiling, amount, inc)
			bid.Outcome = domain.BidOutcomeOutbid
		}
		if err != nil {
			return nil, err
		}
	}

	next.CurrentPrice = price
	next.BidCount = bid.Sequence
	bid.ResultingPrice = price

	// The next bidder's minimum must stay representable.
	if res.MinimumNextBid, err = next.MinimumNextBid(); err != nil {
		return nil, err
	}
	return res, nil
}

func lead(a *domain.Auction, bid *domain.Bid) {
	a.LeadingBidderID = bid.BidderID
	a.LeadingBidID = bid.BidID
	bid.Outcome = domain.BidOutcomeLeading
}

// proxyPrice is min(amount, max(ceiling+inc, price+inc)) for a proxy taking
// the lead from a standing bid with the given ceiling.
func proxyPrice(amount, ceiling, price, inc domain.Money) (domain.Money, error) {
	overCeiling, err := ceiling.Add(inc)
	if err != nil {
		return domain.Money{}, err
	}
	overPrice, err := price.Add(inc)
	if err != nil {
		return domain.Money{}, err
	}
	floor, err := domain.MaxMoney(overCeiling, overPrice)
	if err != nil {
		return domain.Money{}, err
	}
	return domain.MinMoney(amount, floor)
}

// counterPrice is min(ceiling, amount+inc), the price a standing proxy
// answers a lower bid with.
func counterPrice(ceiling, amount, inc domain.Money) (domain.Money, error) {
	over, err := amount.Add(inc)
	if err != nil {
		return domain.Money{}, err
	}
	return domain.MinMoney(ceiling, over)
}
