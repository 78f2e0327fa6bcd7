package ledger

import (
	"errors"
	"fmt"

	"hypeledger/internal/catalog"
)

// Expected, caller-recoverable outcomes of ledger operations. Operations wrap
// them with context; match with errors.Is.
var (
	ErrNotFound                     = catalog.ErrNotFound
	ErrAlreadyClaimed               = errors.New("earning rule already claimed in the current window")
	ErrCooldownActive               = errors.New("spending option is cooling down")
	ErrInsufficientBalance          = errors.New("insufficient balance")
	ErrInsufficientFreeBalance      = fmt.Errorf("free %w", ErrInsufficientBalance)
	ErrInsufficientPaidBalance      = fmt.Errorf("paid %w", ErrInsufficientBalance)
	ErrSustainabilityBudgetExceeded = errors.New("free HYPE budget for premium redemptions exceeded")
	ErrInvalidArgument              = errors.New("invalid argument")
)

// ErrStorageUnavailable wraps every failure of the durable store or the lock
// backend. When it is returned nothing was committed.
var ErrStorageUnavailable = errors.New("ledger storage unavailable")

// Store-level conditions, mapped by the engine onto the errors above.
var (
	ErrOptimisticLock = errors.New("balance version conflict")
	ErrReceiptExists  = errors.New("payment reference already credited")
)

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
