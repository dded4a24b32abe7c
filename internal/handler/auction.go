package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/bidengine/internal/domain"
	"github.com/efreitasn/bidengine/internal/service"
)

// AuctionHandler handles HTTP requests for auction endpoints.
type AuctionHandler struct {
	auctionSvc *service.AuctionService
}

// NewAuctionHandler creates a new AuctionHandler.
func NewAuctionHandler(auctionSvc *service.AuctionService) *AuctionHandler {
	return &AuctionHandler{auctionSvc: auctionSvc}
}

// createAuctionRequest is the JSON request body for POST /auctions.
type createAuctionRequest struct {
	SellerID      string    `json:"seller_id"`
	Title         string    `json:"title"`
	StartingPrice moneyJSON `json:"starting_price"`
	BidIncrement  moneyJSON `json:"bid_increment"`
	ReservePrice  moneyJSON `json:"reserve_price"`
	StartTime     *string   `json:"start_time"`
	EndTime       string    `json:"end_time"`
	AntiSniping   *bool     `json:"anti_sniping"`
}

// cancelAuctionRequest is the JSON request body for POST /auctions/{auction_id}/cancel.
type cancelAuctionRequest struct {
	SellerID string `json:"seller_id"`
}

// auctionResponse is the public view of an auction. The reserve price is
// never shown; only whether it has been met.
type auctionResponse struct {
	AuctionID       string     `json:"auction_id"`
	SellerID        string     `json:"seller_id"`
	Title           string     `json:"title"`
	StartingPrice   moneyJSON  `json:"starting_price"`
	CurrentPrice    moneyJSON  `json:"current_price"`
	BidIncrement    moneyJSON  `json:"bid_increment"`
	MinimumNextBid  *moneyJSON `json:"minimum_next_bid,omitempty"`
	ReserveMet      bool       `json:"reserve_met"`
	Status          string     `json:"status"`
	LeadingBidderID *string    `json:"leading_bidder_id"`
	BidCount        int64      `json:"bid_count"`
	AntiSniping     bool       `json:"anti_sniping"`
	Extensions      int        `json:"extensions"`
	StartTime       string     `json:"start_time"`
	EndTime         string     `json:"end_time"`
	CreatedAt       string     `json:"created_at"`
	ClosedAt        *string    `json:"closed_at"`
}

// auctionListResponse is the JSON response for GET /auctions.
type auctionListResponse struct {
	Auctions []auctionResponse `json:"auctions"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// bidHistoryEntry is one ledger row. Proxy ceilings are not exposed.
type bidHistoryEntry struct {
	BidID      string    `json:"bid_id"`
	BidderID   string    `json:"bidder_id"`
	Amount     moneyJSON `json:"amount"`
	IsProxy    bool      `json:"is_proxy"`
	Sequence   int64     `json:"sequence"`
	Outcome    string    `json:"outcome"`
	AcceptedAt string    `json:"accepted_at"`
}

// bidHistoryResponse is the JSON response for GET /auctions/{auction_id}/bids.
type bidHistoryResponse struct {
	AuctionID string            `json:"auction_id"`
	Bids      []bidHistoryEntry `json:"bids"`
}

// Create handles POST /auctions.
func (h *AuctionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	startingPrice, err := req.StartingPrice.parse("starting_price")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	increment, err := req.BidIncrement.parse("bid_increment")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	reserve, err := req.ReservePrice.parse("reserve_price")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var startTime *time.Time
	if req.StartTime != nil {
		t, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "start_time must be a valid RFC 3339 timestamp")
			return
		}
		startTime = &t
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "end_time must be a valid RFC 3339 timestamp")
		return
	}

	auction, err := h.auctionSvc.CreateAuction(r.Context(), service.CreateAuctionRequest{
		SellerID:      req.SellerID,
		Title:         req.Title,
		StartingPrice: startingPrice,
		BidIncrement:  increment,
		ReservePrice:  reserve,
		StartTime:     startTime,
		EndTime:       endTime,
		AntiSniping:   req.AntiSniping,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildAuctionResponse(auction))
}

// Get handles GET /auctions/{auction_id}.
func (h *AuctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auction_id")

	auction, err := h.auctionSvc.GetAuction(r.Context(), auctionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildAuctionResponse(auction))
}

// List handles GET /auctions.
func (h *AuctionHandler) List(w http.ResponseWriter, r *http.Request) {
	var statusFilter *domain.AuctionState
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.AuctionState(s)
		statusFilter = &status
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		var err error
		page, err = strconv.Atoi(p)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be a valid integer")
			return
		}
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return
		}
	}

	auctions, total, err := h.auctionSvc.ListAuctions(r.Context(), statusFilter, page, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := auctionListResponse{
		Auctions: make([]auctionResponse, len(auctions)),
		Total:    total,
		Page:     page,
		Limit:    limit,
	}
	for i, a := range auctions {
		resp.Auctions[i] = buildAuctionResponse(a)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Cancel handles POST /auctions/{auction_id}/cancel.
func (h *AuctionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auction_id")

	var req cancelAuctionRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	auction, err := h.auctionSvc.CancelAuction(r.Context(), auctionID, req.SellerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildAuctionResponse(auction))
}

// BidHistory handles GET /auctions/{auction_id}/bids.
func (h *AuctionHandler) BidHistory(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auction_id")

	bids, err := h.auctionSvc.BidHistory(r.Context(), auctionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	entries := make([]bidHistoryEntry, len(bids))
	for i, b := range bids {
		entries[i] = bidHistoryEntry{
			BidID:      b.BidID,
			BidderID:   b.BidderID,
			Amount:     toMoneyJSON(b.ResultingPrice),
			IsProxy:    b.IsProxy,
			Sequence:   b.Sequence,
			Outcome:    string(b.Outcome),
			AcceptedAt: formatTime(b.AcceptedAt),
		}
	}

	WriteJSON(w, http.StatusOK, bidHistoryResponse{
		AuctionID: auctionID,
		Bids:      entries,
	})
}

func buildAuctionResponse(a *domain.Auction) auctionResponse {
	resp := auctionResponse{
		AuctionID:     a.AuctionID,
		SellerID:      a.SellerID,
		Title:         a.Title,
		StartingPrice: toMoneyJSON(a.StartingPrice),
		CurrentPrice:  toMoneyJSON(a.CurrentPrice),
		BidIncrement:  toMoneyJSON(a.BidIncrement),
		ReserveMet:    a.ReserveMet(),
		Status:        string(a.State),
		BidCount:      a.BidCount,
		AntiSniping:   a.AntiSniping,
		Extensions:    a.Extensions,
		StartTime:     formatTime(a.StartTime),
		EndTime:       formatTime(a.EndTime),
		CreatedAt:     formatTime(a.CreatedAt),
		ClosedAt:      formatTimePtr(a.ClosedAt),
	}
	// Omitted when no further bid is representable.
	if minimum, err := a.MinimumNextBid(); err == nil {
		m := toMoneyJSON(minimum)
		resp.MinimumNextBid = &m
	}
	if a.HasLeader() {
		leader := a.LeadingBidderID
		resp.LeadingBidderID = &leader
	}
	return resp
}
