package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/efreitasn/bidengine/internal/domain"
)

// retryAfterSeconds is sent with 503 responses for busy or unavailable storage.
const retryAfterSeconds = "1"

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error         string     `json:"error"`
	Message       string     `json:"message"`
	MinAcceptable *moneyJSON `json:"min_acceptable,omitempty"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// ParseJSON decodes the request body as JSON into v.
// It validates that the Content-Type header is application/json and
// returns an error for missing/incorrect content type or malformed JSON.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	return nil
}

// moneyJSON is the wire form of domain.Money: a decimal string in major
// units plus an ISO currency code, e.g. {"amount":"925.00","currency":"USD"}.
type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func toMoneyJSON(m domain.Money) moneyJSON {
	return moneyJSON{
		Amount:   m.Decimal().StringFixed(2),
		Currency: m.Currency,
	}
}

// parse converts the wire form to domain.Money. field names the request
// field in validation messages.
func (m moneyJSON) parse(field string) (domain.Money, error) {
	if m.Amount == "" {
		return domain.Money{}, &domain.ValidationError{Message: field + ".amount is required"}
	}
	money, err := domain.ParseMoney(m.Amount, m.Currency)
	if errors.Is(err, domain.ErrNegativeResult) {
		return domain.Money{}, &domain.ValidationError{Message: field + " must be non-negative"}
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return domain.Money{}, &domain.ValidationError{Message: field + ": " + ve.Message}
	}
	return money, err
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// writeDomainError maps domain errors to HTTP responses. Refused bids also
// carry the minimum acceptable amount.
func writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	var rejected *domain.RejectedBidError
	var tooLow *domain.BidTooLowError
	var minimum *moneyJSON
	switch {
	case errors.As(err, &rejected):
		m := toMoneyJSON(rejected.Minimum)
		minimum = &m
	case errors.As(err, &tooLow):
		m := toMoneyJSON(tooLow.Minimum)
		minimum = &m
	}

	status, code, message := http.StatusInternalServerError, "internal_error", "An unexpected error occurred"
	switch {
	case errors.Is(err, domain.ErrBidTooLow):
		status, code, message = http.StatusUnprocessableEntity, "bid_too_low", err.Error()
	case errors.Is(err, domain.ErrAmountOutOfRange):
		status, code, message = http.StatusBadRequest, "validation_error", "monetary amount is out of range"
	case errors.Is(err, domain.ErrCurrencyMismatch):
		status, code, message = http.StatusBadRequest, "currency_mismatch", err.Error()
	case errors.Is(err, domain.ErrSelfBidding):
		status, code, message = http.StatusForbidden, "self_bidding", err.Error()
	case errors.Is(err, domain.ErrNotSeller):
		status, code, message = http.StatusForbidden, "not_seller", err.Error()
	case errors.Is(err, domain.ErrAuctionNotFound):
		status, code, message = http.StatusNotFound, "auction_not_found", err.Error()
	case errors.Is(err, domain.ErrWebhookNotFound):
		status, code, message = http.StatusNotFound, "webhook_not_found", err.Error()
	case errors.Is(err, domain.ErrAuctionNotActive):
		status, code, message = http.StatusConflict, "auction_not_active", err.Error()
	case errors.Is(err, domain.ErrInvalidTransition):
		status, code, message = http.StatusConflict, "invalid_state_transition", err.Error()
	case errors.Is(err, domain.ErrAuctionAlreadyExists):
		status, code, message = http.StatusConflict, "auction_already_exists", err.Error()
	case errors.Is(err, domain.ErrBusy):
		w.Header().Set("Retry-After", retryAfterSeconds)
		status, code, message = http.StatusServiceUnavailable, "busy", "The auction is busy, retry shortly"
	case errors.Is(err, domain.ErrStorageUnavailable), errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", retryAfterSeconds)
		status, code, message = http.StatusServiceUnavailable, "storage_unavailable", "Storage is temporarily unavailable"
	}

	WriteJSON(w, status, errorResponse{
		Error:         code,
		Message:       message,
		MinAcceptable: minimum,
	})
}
