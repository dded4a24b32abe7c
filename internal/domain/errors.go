package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrAuctionNotFound      = errors.New("auction_not_found")
	ErrAuctionAlreadyExists = errors.New("auction_already_exists")
	ErrAuctionNotActive     = errors.New("auction_not_active")
	ErrInvalidTransition    = errors.New("invalid_state_transition")
	ErrBidTooLow            = errors.New("bid_too_low")
	ErrSelfBidding          = errors.New("self_bidding")
	ErrCurrencyMismatch     = errors.New("currency_mismatch")
	ErrNegativeResult       = errors.New("negative_result")
	ErrAmountOutOfRange     = errors.New("amount_out_of_range")
	ErrVersionConflict      = errors.New("version_conflict")
	ErrBusy                 = errors.New("busy")
	ErrStorageUnavailable   = errors.New("storage_unavailable")
	ErrNotSeller            = errors.New("not_seller")
	ErrWebhookNotFound      = errors.New("webhook_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// BidTooLowError reports a rejected bid together with the smallest amount
// the auction would currently accept.
type BidTooLowError struct {
	Minimum Money
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid_too_low: minimum acceptable bid is %s", e.Minimum)
}

// Is makes errors.Is(err, ErrBidTooLow) match.
func (e *BidTooLowError) Is(target error) bool {
	return target == ErrBidTooLow
}

// RejectedBidError is a submission the auction refused. Err is the reason
// (a *BidTooLowError, ErrSelfBidding, ErrAuctionNotActive or
// ErrCurrencyMismatch) and Minimum the lowest amount the auction accepted
// when the bid was refused. Outcome is set for refusals that have a ledger
// outcome name and empty otherwise.
type RejectedBidError struct {
	Err     error
	Outcome BidOutcome
	Minimum Money
}

func (e *RejectedBidError) Error() string {
	return e.Err.Error()
}

func (e *RejectedBidError) Unwrap() error {
	return e.Err
}

// StorageError wraps a repository I/O failure so callers can match
// ErrStorageUnavailable while keeping the cause.
func StorageError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorageUnavailable, err))
}
