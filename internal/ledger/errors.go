package ledger

import (
	"errors"
	"fmt"

	"github.com/sheikh-saqib/rewards-points-ledger/internal/storage"
)

var (
	ErrUserNotFound = storage.ErrUserNotFound
	ErrUserExists   = storage.ErrUserExists

	// ErrInvalidInput is wrapped by every error the caller can correct.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLedgerInconsistency means a log could not be netted or allocated
	// even though every accepted entry passed validation. It is never the
	// current caller's fault.
	ErrLedgerInconsistency = errors.New("data problem resulted in error with point totals")
)

var (
	ErrEmptyUser          = fmt.Errorf("%w: user id must not be empty", ErrInvalidInput)
	ErrEmptyPayer         = fmt.Errorf("%w: payer must be a non-empty string", ErrInvalidInput)
	ErrMissingTimestamp   = fmt.Errorf("%w: timestamp is required", ErrInvalidInput)
	ErrFutureTimestamp    = fmt.Errorf("%w: timestamp cannot be in the future", ErrInvalidInput)
	ErrNegativeSpend      = fmt.Errorf("%w: points must be positive value", ErrInvalidInput)
	ErrInsufficientPoints = fmt.Errorf("%w: not enough total points for requested deduction", ErrInvalidInput)
	ErrPointsOverflow     = fmt.Errorf("%w: points would overflow the user's point total", ErrInvalidInput)
	ErrHistoricalNegative = fmt.Errorf("%w: negative point total at given datetime would result in historical point total less than zero for specified payer", ErrInvalidInput)
)

// IsValidation reports whether err is a caller-correctable rejection.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
