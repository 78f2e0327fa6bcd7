package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"hypeledger/internal/model"
)

// Store is the durable backing the engine needs. Implementations must make
// Commit all-or-nothing; exclusive access per user is provided by the
// engine's Locker, and balance rows are additionally guarded by their
// Version.
type Store interface {
	// LoadBalance returns the user's balance, creating a zero row if absent.
	LoadBalance(ctx context.Context, userID string) (*model.Balance, error)
	LoadClaims(ctx context.Context, userID string) ([]*model.Claim, error)
	// ListTransactions returns a page of history, most recent first, and the
	// total number of transactions for the user.
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*model.Transaction, int64, error)
	// FindTransaction returns nil, nil when the transaction number is unknown.
	FindTransaction(ctx context.Context, transactionNo string) (*model.Transaction, error)
	// FindReceipt returns nil, nil when the payment reference is unknown.
	FindReceipt(ctx context.Context, paymentRef string) (*model.PurchaseReceipt, error)
	LoadRevenue(ctx context.Context) (decimal.Decimal, error)
	Commit(ctx context.Context, batch *Batch) error
}

// Batch is everything one ledger operation writes.
//
// Balances hold the staged values with the Version that was loaded; the store
// must reject the batch with ErrOptimisticLock if a row moved on since, and
// bump Version on success.
type Batch struct {
	Balances     []*model.Balance
	Transactions []*model.Transaction
	Claims       []*model.Claim
	Receipt      *model.PurchaseReceipt
	RevenueDelta decimal.Decimal
}

func (b *Batch) addBalance(bal *model.Balance) {
	for i, existing := range b.Balances {
		if existing.UserID == bal.UserID {
			b.Balances[i] = bal
			return
		}
	}
	b.Balances = append(b.Balances, bal)
}
