package handler

import (
	"net/http"

	"github.com/efreitasn/bidengine/internal/service"
)

// AdminHandler exposes operator triggers.
type AdminHandler struct {
	auctionSvc *service.AuctionService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(auctionSvc *service.AuctionService) *AdminHandler {
	return &AdminHandler{auctionSvc: auctionSvc}
}

// closeExpiredResponse is the JSON response for POST /admin/close-expired.
type closeExpiredResponse struct {
	Closed []string `json:"closed"`
}

// CloseExpired handles POST /admin/close-expired. Auctions closed before a
// failure are still reported.
func (h *AdminHandler) CloseExpired(w http.ResponseWriter, r *http.Request) {
	closed, err := h.auctionSvc.CloseExpired(r.Context())
	if err != nil && len(closed) == 0 {
		writeDomainError(w, err)
		return
	}
	if closed == nil {
		closed = []string{}
	}
	WriteJSON(w, http.StatusOK, closeExpiredResponse{Closed: closed})
}
