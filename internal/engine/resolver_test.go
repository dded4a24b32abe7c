package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/efreitasn/bidengine/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func usd(cents int64) domain.Money {
	return domain.Money{Amount: cents, Currency: "USD"}
}

// newResolverAuction returns an Active auction at $800.00 with a $25.00
// increment and a $900.00 reserve.
func newResolverAuction() *domain.Auction {
	return &domain.Auction{
		AuctionID:     "a-1",
		SellerID:      "seller",
		StartingPrice: usd(80000),
		CurrentPrice:  usd(80000),
		BidIncrement:  usd(2500),
		ReservePrice:  usd(90000),
		StartTime:     t0.Add(-time.Hour),
		EndTime:       t0.Add(time.Hour),
		State:         domain.AuctionStateActive,
	}
}

func request(bidder string, cents int64, proxy bool) domain.BidRequest {
	return domain.BidRequest{AuctionID: "a-1", BidderID: bidder, Amount: usd(cents), IsProxy: proxy}
}

// apply resolves req and returns the next auction and the appended bid,
// standing in for the repository.
func apply(t *testing.T, a *domain.Auction, leading *domain.Bid, req domain.BidRequest, id string) (*domain.Auction, *domain.Bid, *Resolution) {
	t.Helper()
	res, err := Resolve(a, leading, req, id, t0)
	assert.NoError(t, err)
	nextLeading := leading
	if res.Auction.LeadingBidID == res.Bid.BidID {
		nextLeading = res.Bid
	}
	return res.Auction, nextLeading, res
}

func TestResolve_WorkedExample(t *testing.T) {
	a := newResolverAuction()

	// A: proxy with a $1000 ceiling leads; the price stays at the floor.
	a, leading, res := apply(t, a, nil, request("A", 100000, true), "b-1")
	check.Equal(t, domain.BidOutcomeLeading, res.Bid.Outcome)
	check.Equal(t, usd(80000), a.CurrentPrice)
	check.Equal(t, "A", a.LeadingBidderID)
	check.Equal(t, "", res.PreviousLeaderID)

	// B: manual $900 is outbid by A's proxy; price = min(1000, 900+25).
	a, leading, res = apply(t, a, leading, request("B", 90000, false), "b-2")
	check.Equal(t, domain.BidOutcomeOutbid, res.Bid.Outcome)
	check.Equal(t, usd(92500), a.CurrentPrice)
	check.Equal(t, usd(92500), res.Bid.ResultingPrice)
	check.Equal(t, "A", a.LeadingBidderID)
	check.Equal(t, "b-1", a.LeadingBidID)

	// C: manual $1050 beats A's ceiling and sets the price outright.
	a, _, res = apply(t, a, leading, request("C", 105000, false), "b-3")
	check.Equal(t, domain.BidOutcomeLeading, res.Bid.Outcome)
	check.Equal(t, usd(105000), a.CurrentPrice)
	check.Equal(t, "C", a.LeadingBidderID)
	check.Equal(t, "A", res.PreviousLeaderID)
	check.Equal(t, int64(3), a.BidCount)
	check.Equal(t, int64(3), res.Bid.Sequence)
}

func TestResolve_Cases(t *testing.T) {
	standingProxy := &domain.Bid{BidID: "lead", BidderID: "L", SubmittedAmount: usd(100000), IsProxy: true, Sequence: 1}

	tests := []struct {
		name        string
		price       int64
		leading     *domain.Bid
		req         domain.BidRequest
		wantPrice   int64
		wantOutcome domain.BidOutcome
		wantLeader  string
	}{
		{"first manual bid sets price", 80000, nil, request("N", 85000, false), 85000, domain.BidOutcomeLeading, "N"},
		{"first proxy keeps floor", 80000, nil, request("N", 200000, true), 80000, domain.BidOutcomeLeading, "N"},
		{"first bid at exact minimum", 80000, nil, request("N", 82500, false), 82500, domain.BidOutcomeLeading, "N"},
		{"proxy beats proxy one step above ceiling", 80000, standingProxy, request("N", 150000, true), 102500, domain.BidOutcomeLeading, "N"},
		{"proxy beats proxy capped at own ceiling", 80000, standingProxy, request("N", 101000, true), 101000, domain.BidOutcomeLeading, "N"},
		{"manual beats proxy at its amount", 80000, standingProxy, request("N", 110000, false), 110000, domain.BidOutcomeLeading, "N"},
		{"manual below ceiling pushes price", 80000, standingProxy, request("N", 90000, false), 92500, domain.BidOutcomeOutbid, "L"},
		{"proxy below ceiling pushes price", 80000, standingProxy, request("N", 95000, true), 97500, domain.BidOutcomeOutbid, "L"},
		{"tie keeps earlier bid, price capped at ceiling", 80000, standingProxy, request("N", 100000, false), 100000, domain.BidOutcomeOutbid, "L"},
		{"just under ceiling caps at ceiling", 80000, standingProxy, request("N", 99000, false), 100000, domain.BidOutcomeOutbid, "L"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newResolverAuction()
			a.CurrentPrice = usd(tt.price)
			if tt.leading != nil {
				a.LeadingBidderID = tt.leading.BidderID
				a.LeadingBidID = tt.leading.BidID
				a.BidCount = 1
			}

			res, err := Resolve(a, tt.leading, tt.req, "new", t0)
			assert.NoError(t, err)
			check.Equal(t, usd(tt.wantPrice), res.Auction.CurrentPrice)
			check.Equal(t, tt.wantOutcome, res.Bid.Outcome)
			check.Equal(t, tt.wantLeader, res.Auction.LeadingBidderID)
			check.Equal(t, a.BidCount+1, res.Bid.Sequence)
		})
	}
}

func TestResolve_BelowMinimum(t *testing.T) {
	a := newResolverAuction()

	_, err := Resolve(a, nil, request("N", 82499, false), "new", t0)
	check.True(t, errors.Is(err, domain.ErrBidTooLow))

	var tooLow *domain.BidTooLowError
	assert.True(t, errors.As(err, &tooLow))
	check.Equal(t, usd(82500), tooLow.Minimum)
}

func TestResolve_LeaderRaisesOwnCeiling(t *testing.T) {
	a := newResolverAuction()
	a, leading, _ := apply(t, a, nil, request("A", 100000, true), "b-1")

	// Not above the current ceiling plus one step.
	_, err := Resolve(a, leading, request("A", 100000, true), "b-2", t0)
	var tooLow *domain.BidTooLowError
	assert.True(t, errors.As(err, &tooLow))
	check.Equal(t, usd(102500), tooLow.Minimum)

	// A proxy raise keeps the public price.
	res, err := Resolve(a, leading, request("A", 120000, true), "b-2", t0)
	assert.NoError(t, err)
	check.Equal(t, usd(80000), res.Auction.CurrentPrice)
	check.Equal(t, "b-2", res.Auction.LeadingBidID)
	check.Equal(t, "", res.PreviousLeaderID)

	// A manual raise sets it.
	res, err = Resolve(a, leading, request("A", 120000, false), "b-2", t0)
	assert.NoError(t, err)
	check.Equal(t, usd(120000), res.Auction.CurrentPrice)
}

func TestResolve_CurrencyMismatch(t *testing.T) {
	a := newResolverAuction()
	req := request("N", 90000, false)
	req.Amount.Currency = "EUR"

	_, err := Resolve(a, nil, req, "new", t0)
	check.True(t, errors.Is(err, domain.ErrCurrencyMismatch))
}

func TestResolve_AmountsAtInt64Limit(t *testing.T) {
	// The minimum next bid is not representable, so nothing may lead.
	a := newResolverAuction()
	a.StartingPrice = usd(math.MaxInt64 - 10)
	a.CurrentPrice = a.StartingPrice
	a.BidIncrement = usd(100)
	_, err := Resolve(a, nil, request("N", 1, false), "new", t0)
	check.True(t, errors.Is(err, domain.ErrAmountOutOfRange))

	// A manual bid whose own next minimum would overflow is refused.
	a = newResolverAuction()
	_, err = Resolve(a, nil, request("N", math.MaxInt64, false), "new", t0)
	check.True(t, errors.Is(err, domain.ErrAmountOutOfRange))

	// A proxy ceiling at the limit still leads at the floor.
	res, err := Resolve(a, nil, request("N", math.MaxInt64, true), "new", t0)
	assert.NoError(t, err)
	check.Equal(t, usd(80000), res.Auction.CurrentPrice)

	// Raising over a ceiling at the limit is out of range, not accepted.
	_, err = Resolve(res.Auction, res.Bid, request("N", math.MaxInt64, true), "next", t0)
	check.True(t, errors.Is(err, domain.ErrAmountOutOfRange))
}

func TestResolve_DoesNotMutateInputs(t *testing.T) {
	a := newResolverAuction()
	before := *a

	_, err := Resolve(a, nil, request("N", 90000, false), "new", t0)
	assert.NoError(t, err)
	check.Equal(t, before.CurrentPrice, a.CurrentPrice)
	check.Equal(t, before.BidCount, a.BidCount)
	check.Equal(t, "", a.LeadingBidderID)
}
