package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/efreitasn/bidengine/internal/domain"
	"github.com/efreitasn/bidengine/internal/engine"
	"github.com/efreitasn/bidengine/internal/store"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func usd(cents int64) domain.Money {
	return domain.Money{Amount: cents, Currency: "USD"}
}

func newTestAuctionService(antiSniping bool) *AuctionService {
	repo := store.NewMemoryStore()
	eng := engine.New(repo, nil, engine.Config{}, nil)
	svc := NewAuctionService(repo, eng, antiSniping)
	svc.now = func() time.Time { return testNow }
	return svc
}

func validCreateRequest() CreateAuctionRequest {
	return CreateAuctionRequest{
		SellerID:      "seller-1",
		Title:         "Vintage camera",
		StartingPrice: usd(80000),
		BidIncrement:  usd(2500),
		ReservePrice:  usd(90000),
		EndTime:       time.Now().Add(time.Hour),
	}
}

func TestCreateAuction_ActiveWhenStarted(t *testing.T) {
	svc := newTestAuctionService(false)

	a, err := svc.CreateAuction(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.State != domain.AuctionStateActive {
		t.Errorf("got state %s, want active", a.State)
	}
	if a.CurrentPrice != a.StartingPrice {
		t.Errorf("current price %v should equal starting price %v", a.CurrentPrice, a.StartingPrice)
	}
	if a.AuctionID == "" {
		t.Error("expected an auction id")
	}

	got, err := svc.GetAuction(context.Background(), a.AuctionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Vintage camera" {
		t.Errorf("got title %q", got.Title)
	}
}

func TestCreateAuction_ScheduledWhenStartInFuture(t *testing.T) {
	svc := newTestAuctionService(false)
	req := validCreateRequest()
	start := testNow.Add(10 * time.Minute)
	req.StartTime = &start
	req.EndTime = testNow.Add(time.Hour)

	a, err := svc.CreateAuction(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.State != domain.AuctionStateScheduled {
		t.Errorf("got state %s, want scheduled", a.State)
	}
}

func TestCreateAuction_AntiSnipingDefaultAndOverride(t *testing.T) {
	svc := newTestAuctionService(true)

	a, err := svc.CreateAuction(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.AntiSniping {
		t.Error("expected the configured default to enable anti-sniping")
	}

	off := false
	req := validCreateRequest()
	req.AntiSniping = &off
	a, err = svc.CreateAuction(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.AntiSniping {
		t.Error("expected the request to override the default")
	}
}

func TestCreateAuction_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateAuctionRequest)
		target error
	}{
		{"bad seller id", func(r *CreateAuctionRequest) { r.SellerID = "no spaces" }, nil},
		{"empty title", func(r *CreateAuctionRequest) { r.Title = "" }, nil},
		{"zero increment", func(r *CreateAuctionRequest) { r.BidIncrement = usd(0) }, nil},
		{"negative starting price", func(r *CreateAuctionRequest) { r.StartingPrice = usd(-1) }, nil},
		{"first minimum out of range", func(r *CreateAuctionRequest) { r.StartingPrice = usd(math.MaxInt64 - 100) }, nil},
		{"missing currency", func(r *CreateAuctionRequest) {
			r.StartingPrice.Currency = ""
			r.BidIncrement.Currency = ""
			r.ReservePrice.Currency = ""
		}, nil},
		{"end before start", func(r *CreateAuctionRequest) { r.EndTime = testNow.Add(-time.Minute) }, nil},
		{"mixed currencies", func(r *CreateAuctionRequest) { r.ReservePrice.Currency = "EUR" }, domain.ErrCurrencyMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestAuctionService(false)
			req := validCreateRequest()
			req.EndTime = testNow.Add(time.Hour)
			tt.mutate(&req)

			_, err := svc.CreateAuction(context.Background(), req)
			if tt.target != nil {
				if !errors.Is(err, tt.target) {
					t.Fatalf("got %v, want %v", err, tt.target)
				}
				return
			}
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestListAuctions_Validation(t *testing.T) {
	svc := newTestAuctionService(false)
	ctx := context.Background()

	bogus := domain.AuctionState("bogus")
	for _, tc := range []struct {
		state *domain.AuctionState
		page  int
		limit int
	}{
		{&bogus, 1, 10},
		{nil, 0, 10},
		{nil, 1, 0},
		{nil, 1, 101},
	} {
		_, _, err := svc.ListAuctions(ctx, tc.state, tc.page, tc.limit)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("state=%v page=%d limit=%d: got %v, want ValidationError", tc.state, tc.page, tc.limit, err)
		}
	}
}

func TestBidderBids_WinningStatus(t *testing.T) {
	svc := newTestAuctionService(false)
	ctx := context.Background()

	req := validCreateRequest()
	req.EndTime = time.Now().Add(time.Hour)
	a, err := svc.CreateAuction(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.SubmitBid(ctx, a.AuctionID, "alice", usd(85000), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.SubmitBid(ctx, a.AuctionID, "bob", usd(90000), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	alice, err := svc.BidderBids(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alice) != 1 || alice[0].Winning {
		t.Errorf("alice should have one losing bid, got %+v", alice)
	}

	bob, err := svc.BidderBids(ctx, "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bob) != 1 || !bob[0].Winning {
		t.Errorf("bob should have one winning bid, got %+v", bob)
	}
	if bob[0].AuctionState != domain.AuctionStateActive {
		t.Errorf("got auction state %s, want active", bob[0].AuctionState)
	}

	history, err := svc.BidHistory(ctx, a.AuctionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("got %d bids, want 2", len(history))
	}
}

func TestSubmitBid_SellerRefusedAtAnyAmount(t *testing.T) {
	svc := newTestAuctionService(false)
	ctx := context.Background()

	req := validCreateRequest()
	req.EndTime = time.Now().Add(time.Hour)
	a, err := svc.CreateAuction(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, amount := range []domain.Money{usd(0), usd(-5), usd(1_000_000), {Amount: 90000}} {
		_, err := svc.SubmitBid(ctx, a.AuctionID, "seller-1", amount, false)
		if !errors.Is(err, domain.ErrSelfBidding) {
			t.Errorf("amount %v: got %v, want ErrSelfBidding", amount, err)
		}
	}
}

func TestCancelAuction(t *testing.T) {
	svc := newTestAuctionService(false)
	ctx := context.Background()

	req := validCreateRequest()
	req.EndTime = time.Now().Add(time.Hour)
	a, err := svc.CreateAuction(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.CancelAuction(ctx, a.AuctionID, "intruder"); !errors.Is(err, domain.ErrNotSeller) {
		t.Errorf("got %v, want ErrNotSeller", err)
	}
	cancelled, err := svc.CancelAuction(ctx, a.AuctionID, "seller-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.State != domain.AuctionStateCancelled {
		t.Errorf("got state %s, want cancelled", cancelled.State)
	}
}
