package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"hypeledger/internal/model"
)

// MemoryStore is a Store held in process memory. It is the default for
// development and tests; state is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	balances map[string]*model.Balance
	history  map[string][]*model.Transaction // oldest first
	byNo     map[string]*model.Transaction
	claims   map[string]map[string]*model.Claim
	receipts map[string]*model.PurchaseReceipt
	revenue  decimal.Decimal
	nextID   int64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]*model.Balance),
		history:  make(map[string][]*model.Transaction),
		byNo:     make(map[string]*model.Transaction),
		claims:   make(map[string]map[string]*model.Claim),
		receipts: make(map[string]*model.PurchaseReceipt),
		revenue:  decimal.Zero,
	}
}

func (s *MemoryStore) LoadBalance(_ context.Context, userID string) (*model.Balance, error) {
	s.mu.RLock()
	b, ok := s.balances[userID]
	s.mu.RUnlock()
	if ok {
		return b.Clone(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.balances[userID]; !ok {
		s.nextID++
		now := time.Now()
		b = model.NewBalance(userID)
		b.ID = s.nextID
		b.CreatedAt = now
		b.UpdatedAt = now
		s.balances[userID] = b
	}
	return b.Clone(), nil
}

func (s *MemoryStore) LoadClaims(_ context.Context, userID string) ([]*model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Claim, 0, len(s.claims[userID]))
	for _, c := range s.claims[userID] {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, userID string, limit, offset int) ([]*model.Transaction, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.history[userID]
	total := int64(len(all))
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []*model.Transaction{}, total, nil
	}

	end := len(all) - offset // exclusive, in oldest-first indexing
	start := 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}

	out := make([]*model.Transaction, 0, end-start)
	for i := end - 1; i >= start; i-- {
		out = append(out, copyTransaction(all[i]))
	}
	return out, total, nil
}

func (s *MemoryStore) FindTransaction(_ context.Context, transactionNo string) (*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byNo[transactionNo]
	if !ok {
		return nil, nil
	}
	return copyTransaction(t), nil
}

func (s *MemoryStore) FindReceipt(_ context.Context, paymentRef string) (*model.PurchaseReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.receipts[paymentRef]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) LoadRevenue(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revenue, nil
}

// Commit validates the whole batch before writing any of it.
func (s *MemoryStore) Commit(_ context.Context, batch *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range batch.Balances {
		cur, ok := s.balances[b.UserID]
		version := 0
		if ok {
			version = cur.Version
		}
		if b.Version != version {
			return fmt.Errorf("%w: user %s at version %d, batch has %d", ErrOptimisticLock, b.UserID, version, b.Version)
		}
	}
	if r := batch.Receipt; r != nil {
		if _, ok := s.receipts[r.PaymentRef]; ok {
			return fmt.Errorf("%w: %s", ErrReceiptExists, r.PaymentRef)
		}
	}

	now := time.Now()
	for _, b := range batch.Balances {
		b.Version++
		b.UpdatedAt = now
		if b.ID == 0 {
			s.nextID++
			b.ID = s.nextID
			b.CreatedAt = now
		}
		s.balances[b.UserID] = b.Clone()
	}
	for _, t := range batch.Transactions {
		s.nextID++
		t.ID = s.nextID
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		stored := copyTransaction(t)
		s.history[t.UserID] = append(s.history[t.UserID], stored)
		s.byNo[t.TransactionNo] = stored
	}
	for _, c := range batch.Claims {
		byRef, ok := s.claims[c.UserID]
		if !ok {
			byRef = make(map[string]*model.Claim)
			s.claims[c.UserID] = byRef
		}
		key := claimKey(c.Kind, c.RefID)
		if prev, ok := byRef[key]; ok {
			c.ID = prev.ID
		} else {
			s.nextID++
			c.ID = s.nextID
		}
		cp := *c
		byRef[key] = &cp
	}
	if r := batch.Receipt; r != nil {
		s.nextID++
		r.ID = s.nextID
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		cp := *r
		s.receipts[r.PaymentRef] = &cp
	}
	s.revenue = s.revenue.Add(batch.RevenueDelta)
	return nil
}

func copyTransaction(t *model.Transaction) *model.Transaction {
	cp := *t
	if t.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
