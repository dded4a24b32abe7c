package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/bidengine/internal/service"
)

// BidHandler handles HTTP requests for bid endpoints.
type BidHandler struct {
	auctionSvc *service.AuctionService
}

// NewBidHandler creates a new BidHandler.
func NewBidHandler(auctionSvc *service.AuctionService) *BidHandler {
	return &BidHandler{auctionSvc: auctionSvc}
}

// submitBidRequest is the JSON request body for POST /auctions/{auction_id}/bids.
// For proxy bids amount is the bidder's ceiling.
type submitBidRequest struct {
	BidderID string    `json:"bidder_id"`
	Amount   moneyJSON `json:"amount"`
	IsProxy  bool      `json:"is_proxy"`
}

// bidReceiptResponse is the JSON response for an accepted bid.
type bidReceiptResponse struct {
	Accepted       bool      `json:"accepted"`
	BidID          string    `json:"bid_id"`
	Outcome        string    `json:"outcome"`
	Leading        bool      `json:"leading"`
	CurrentPrice   moneyJSON `json:"current_price"`
	MinimumNextBid moneyJSON `json:"minimum_next_bid"`
	EndTime        string    `json:"end_time"`
}

// bidderBidResponse is one bid in GET /bidders/{bidder_id}/bids.
type bidderBidResponse struct {
	BidID         string    `json:"bid_id"`
	AuctionID     string    `json:"auction_id"`
	Amount        moneyJSON `json:"amount"`
	IsProxy       bool      `json:"is_proxy"`
	Winning       bool      `json:"winning"`
	AuctionStatus string    `json:"auction_status"`
	AcceptedAt    string    `json:"accepted_at"`
}

// bidderBidsResponse is the JSON response for GET /bidders/{bidder_id}/bids.
type bidderBidsResponse struct {
	BidderID string              `json:"bidder_id"`
	Bids     []bidderBidResponse `json:"bids"`
}

// Submit handles POST /auctions/{auction_id}/bids.
func (h *BidHandler) Submit(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auction_id")

	var req submitBidRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	amount, err := req.Amount.parse("amount")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	receipt, err := h.auctionSvc.SubmitBid(r.Context(), auctionID, req.BidderID, amount, req.IsProxy)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, bidReceiptResponse{
		Accepted:       receipt.Accepted,
		BidID:          receipt.BidID,
		Outcome:        string(receipt.Outcome),
		Leading:        receipt.Leading,
		CurrentPrice:   toMoneyJSON(receipt.ResultingPrice),
		MinimumNextBid: toMoneyJSON(receipt.MinimumNextBid),
		EndTime:        formatTime(receipt.EndTime),
	})
}

// ListByBidder handles GET /bidders/{bidder_id}/bids.
func (h *BidHandler) ListByBidder(w http.ResponseWriter, r *http.Request) {
	bidderID := chi.URLParam(r, "bidder_id")

	bids, err := h.auctionSvc.BidderBids(r.Context(), bidderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := bidderBidsResponse{
		BidderID: bidderID,
		Bids:     make([]bidderBidResponse, len(bids)),
	}
	for i, bb := range bids {
		resp.Bids[i] = bidderBidResponse{
			BidID:         bb.Bid.BidID,
			AuctionID:     bb.Bid.AuctionID,
			Amount:        toMoneyJSON(bb.Bid.ResultingPrice),
			IsProxy:       bb.Bid.IsProxy,
			Winning:       bb.Winning,
			AuctionStatus: string(bb.AuctionState),
			AcceptedAt:    formatTime(bb.Bid.AcceptedAt),
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}
