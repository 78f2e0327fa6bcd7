package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"hypeledger/internal/ledger"
	"hypeledger/internal/model"
)

// Store is the gorm-backed ledger.Store. Commit runs in one database
// transaction; when an outbox topic is set, every committed ledger
// transaction also gets an outbox row in that same transaction.
type Store struct {
	db           *gorm.DB
	outboxTopic  string
	balances     *BalanceRepository
	transactions *TransactionRepository
	claims       *ClaimRepository
	receipts     *ReceiptRepository
	revenue      *RevenueRepository
	outbox       *OutboxRepository
}

var _ ledger.Store = (*Store)(nil)

// NewStore builds a Store. An empty outboxTopic disables event rows.
func NewStore(db *gorm.DB, outboxTopic string) *Store {
	return &Store{
		db:           db,
		outboxTopic:  outboxTopic,
		balances:     NewBalanceRepository(db),
		transactions: NewTransactionRepository(db),
		claims:       NewClaimRepository(db),
		receipts:     NewReceiptRepository(db),
		revenue:      NewRevenueRepository(db),
		outbox:       NewOutboxRepository(db),
	}
}

func (s *Store) LoadBalance(ctx context.Context, userID string) (*model.Balance, error) {
	return s.balances.GetOrCreate(ctx, userID)
}

func (s *Store) LoadClaims(ctx context.Context, userID string) ([]*model.Claim, error) {
	return s.claims.ListByUserID(ctx, userID)
}

func (s *Store) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*model.Transaction, int64, error) {
	return s.transactions.ListByUserID(ctx, userID, limit, offset)
}

func (s *Store) FindTransaction(ctx context.Context, transactionNo string) (*model.Transaction, error) {
	return s.transactions.GetByTransactionNo(ctx, transactionNo)
}

func (s *Store) FindReceipt(ctx context.Context, paymentRef string) (*model.PurchaseReceipt, error) {
	return s.receipts.GetByPaymentRef(ctx, nil, paymentRef)
}

func (s *Store) LoadRevenue(ctx context.Context) (decimal.Decimal, error) {
	return s.revenue.Get(ctx)
}

func (s *Store) Commit(ctx context.Context, batch *ledger.Batch) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, b := range batch.Balances {
			if err := s.balances.Update(ctx, tx, b); err != nil {
				return err
			}
		}

		if batch.Receipt != nil {
			if err := s.receipts.Create(ctx, tx, batch.Receipt); err != nil {
				return err
			}
		}

		for _, txn := range batch.Transactions {
			if err := s.transactions.Create(ctx, tx, txn); err != nil {
				return fmt.Errorf("insert transaction %s: %w", txn.TransactionNo, err)
			}
			if s.outboxTopic == "" {
				continue
			}
			msg, err := model.NewLedgerOutboxMessage(s.outboxTopic, txn)
			if err != nil {
				return fmt.Errorf("encode event %s: %w", txn.TransactionNo, err)
			}
			if err := s.outbox.Create(ctx, tx, msg); err != nil {
				return fmt.Errorf("insert outbox %s: %w", txn.TransactionNo, err)
			}
		}

		for _, c := range batch.Claims {
			if err := s.claims.Upsert(ctx, tx, c); err != nil {
				return fmt.Errorf("upsert claim %s/%s: %w", c.Kind, c.RefID, err)
			}
		}

		if !batch.RevenueDelta.IsZero() {
			if err := s.revenue.Add(ctx, tx, batch.RevenueDelta); err != nil {
				return fmt.Errorf("add revenue: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, b := range batch.Balances {
		b.Version++
	}
	return nil
}
