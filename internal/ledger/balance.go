package ledger

import (
	"context"
	"errors"
	"fmt"

	"hypeledger/internal/model"
)

// Delta is a signed change to one user's pools together with the transaction
// that explains it. Txn.Amount must equal Free + Paid.
type Delta struct {
	Free int64
	Paid int64
	Txn  *model.Transaction
}

// BalanceStore owns every change to a user's Free and Paid pools. Nothing
// else in the engine writes those fields.
type BalanceStore struct {
	store Store
}

func NewBalanceStore(store Store) *BalanceStore {
	return &BalanceStore{store: store}
}

// Get returns the user's balance, creating a zero balance on first reference.
func (s *BalanceStore) Get(ctx context.Context, userID string) (*model.Balance, error) {
	b, err := s.store.LoadBalance(ctx, userID)
	if err != nil {
		return nil, storageError("load balance", err)
	}
	return b, nil
}

// ApplyDelta checks that d keeps both pools non-negative and, if so, stages
// the resulting balance and the transaction into batch. current is not
// modified. On failure nothing is staged.
//
// The lifetime counter moved is chosen by the transaction type; for gifts the
// sign picks Gifted (debit leg) or Received (credit leg).
func (s *BalanceStore) ApplyDelta(batch *Batch, current *model.Balance, d Delta) (*model.Balance, error) {
	if d.Txn == nil || d.Txn.Amount != d.Free+d.Paid || d.Txn.UserID != current.UserID {
		return nil, fmt.Errorf("%w: delta does not match its transaction", ErrInvalidArgument)
	}

	free := current.Free + d.Free
	paid := current.Paid + d.Paid
	if free < 0 {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFreeBalance, current.Free, -d.Free)
	}
	if paid < 0 {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientPaidBalance, current.Paid, -d.Paid)
	}

	next := current.Clone()
	next.Free = free
	next.Paid = paid
	next.Total = free + paid

	amount := d.Txn.Amount
	switch d.Txn.Type {
	case model.TransactionTypeEarned:
		next.Earned += amount
	case model.TransactionTypeSpent:
		next.Spent += -amount
	case model.TransactionTypePurchased:
		next.Purchased += amount
	case model.TransactionTypeGifted:
		if amount < 0 {
			next.Gifted += -amount
		} else {
			next.Received += amount
		}
	default:
		return nil, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidArgument, d.Txn.Type)
	}

	d.Txn.FreeAfter = free
	d.Txn.PaidAfter = paid
	batch.addBalance(next)
	batch.Transactions = append(batch.Transactions, d.Txn)
	return next, nil
}

// Commit makes the batch durable. Either every staged write lands or none do.
func (s *BalanceStore) Commit(ctx context.Context, batch *Batch) error {
	if err := s.store.Commit(ctx, batch); err != nil {
		if errors.Is(err, ErrReceiptExists) {
			return err
		}
		return storageError("commit", err)
	}
	return nil
}
