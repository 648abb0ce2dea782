package domain

import "errors"

// Store-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
)

// Business rule errors. Validation and state errors are returned to the
// caller synchronously and cause no mutation.
var (
	ErrInvalidState         = errors.New("auction in wrong state for operation")
	ErrValidation           = errors.New("invalid auction input")
	ErrInsufficientFunds    = errors.New("insufficient points balance")
	ErrBidTooLow            = errors.New("bid amount below minimum next bid")
	ErrAlreadyHighestBidder = errors.New("bidder already holds the highest bid")
	ErrCapacityExceeded     = errors.New("auction participant limit reached")
)
