// Package ledger implements the HYPE economy: earning, spending, purchasing
// and gifting against per-user balances, with frequency limits, the revenue
// based sustainability throttle and change notification.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"hypeledger/internal/catalog"
	"hypeledger/internal/model"
	"hypeledger/pkg/idgen"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

type Options struct {
	Catalog        *catalog.Catalog
	Store          Store
	Locker         Locker                    // default NewLocalLocker()
	Sustainability *SustainabilityController // default DefaultPolicy()
	Notifier       *ChangeNotifier           // default NewChangeNotifier()
	Clock          func() time.Time          // default time.Now
	IDGen          func() string             // default idgen.GenerateTransactionNo
}

// Engine is the entry point for every ledger operation. Construct it once
// at startup with NewEngine, call Init, and share it.
type Engine struct {
	catalog        *catalog.Catalog
	store          Store
	balances       *BalanceStore
	tracker        FrequencyTracker
	locker         Locker
	sustainability *SustainabilityController
	notifier       *ChangeNotifier
	now            func() time.Time
	nextTxnNo      func() string

	// Purchases hold it shared across commit and RecordRevenue; SyncRevenue
	// holds it exclusively so a reload never double counts a purchase.
	revenueMu sync.RWMutex
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Catalog == nil {
		return nil, errors.New("ledger: catalog is required")
	}
	if opts.Store == nil {
		return nil, errors.New("ledger: store is required")
	}
	if opts.Locker == nil {
		opts.Locker = NewLocalLocker()
	}
	if opts.Sustainability == nil {
		opts.Sustainability = NewSustainabilityController(DefaultPolicy())
	}
	if opts.Notifier == nil {
		opts.Notifier = NewChangeNotifier()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.IDGen == nil {
		opts.IDGen = idgen.GenerateTransactionNo
	}

	return &Engine{
		catalog:        opts.Catalog,
		store:          opts.Store,
		balances:       NewBalanceStore(opts.Store),
		locker:         opts.Locker,
		sustainability: opts.Sustainability,
		notifier:       opts.Notifier,
		now:            opts.Clock,
		nextTxnNo:      opts.IDGen,
	}, nil
}

// Init loads the persisted revenue total into the sustainability controller.
func (e *Engine) Init(ctx context.Context) error {
	if err := e.SyncRevenue(ctx); err != nil {
		return err
	}
	snap := e.sustainability.Snapshot()
	log.WithFields(log.Fields{
		"total_revenue":    snap.TotalRevenue.String(),
		"free_hype_budget": snap.FreeHypeBudget.StringFixed(2),
	}).Info("ledger engine initialized")
	return nil
}

// SyncRevenue reloads total revenue from the store. Instances sharing a
// database call it periodically to pick up each other's purchases.
func (e *Engine) SyncRevenue(ctx context.Context) error {
	e.revenueMu.Lock()
	defer e.revenueMu.Unlock()

	total, err := e.store.LoadRevenue(ctx)
	if err != nil {
		return storageError("load revenue", err)
	}
	e.sustainability.Reset(total)
	return nil
}

// ============================================================================
// Results
// ============================================================================

type EarnResult struct {
	Amount      int64              `json:"amount"`
	Multiplier  decimal.Decimal    `json:"multiplier"`
	Transaction *model.Transaction `json:"transaction"`
	Balance     *model.Balance     `json:"balance"`
}

type SpendResult struct {
	Cost        int64              `json:"cost"`
	Pool        string             `json:"pool"`
	Transaction *model.Transaction `json:"transaction"`
	Balance     *model.Balance     `json:"balance"`
}

// PurchaseResult.Transaction is nil when Replayed is true; the receipt names
// the transaction that credited the original purchase.
type PurchaseResult struct {
	Hype        int64                  `json:"hype"`
	Price       decimal.Decimal        `json:"price"`
	Replayed    bool                   `json:"replayed"`
	Receipt     *model.PurchaseReceipt `json:"receipt"`
	Transaction *model.Transaction     `json:"transaction,omitempty"`
	Balance     *model.Balance         `json:"balance"`
}

type GiftResult struct {
	Amount int64              `json:"amount"`
	Debit  *model.Transaction `json:"debit"`
	Credit *model.Transaction `json:"credit"`
	From   *model.Balance     `json:"from"`
	To     *model.Balance     `json:"to"`
}

// ============================================================================
// Operations
// ============================================================================

// Earn credits the free pool for ruleID. metadata carries the conditions the
// rule's multipliers test, e.g. {"trending": true}.
func (e *Engine) Earn(ctx context.Context, userID, ruleID string, metadata map[string]interface{}) (*EarnResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("earn: %w: empty user id", ErrInvalidArgument)
	}
	rule, err := e.catalog.EarningRule(ruleID)
	if err != nil {
		return nil, fmt.Errorf("earn: %w", err)
	}
	if err := validateMetadata(metadata); err != nil {
		return nil, fmt.Errorf("earn %s: %w", ruleID, err)
	}

	unlock, err := e.lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("earn %s: %w", ruleID, err)
	}
	defer unlock()

	claims, err := e.loadClaims(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("earn %s: %w", ruleID, err)
	}
	now := e.now().UTC()
	if e.tracker.HasClaimed(claims, rule.ID, rule.Frequency, now) {
		return nil, fmt.Errorf("earn %s (%s): %w", ruleID, rule.Frequency, ErrAlreadyClaimed)
	}

	amount, factor := rule.Reward(metadata)

	current, err := e.balances.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("earn %s: %w", ruleID, err)
	}

	meta := make(map[string]interface{}, len(metadata)+2)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[model.MetaSource] = rule.ID
	meta[model.MetaMultiplier] = factor.String()
	txn := e.newTransaction(userID, amount, model.TransactionTypeEarned, rule.Category, model.PoolFree, rule.Description, meta, now)

	batch := &Batch{}
	next, err := e.balances.ApplyDelta(batch, current, Delta{Free: amount, Txn: txn})
	if err != nil {
		return nil, fmt.Errorf("earn %s: %w", ruleID, err)
	}
	batch.Claims = append(batch.Claims, e.tracker.RecordClaim(claims, userID, rule.ID, now))

	if err := e.balances.Commit(ctx, batch); err != nil {
		return nil, fmt.Errorf("earn %s: %w", ruleID, err)
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"rule_id": rule.ID,
		"amount":  amount,
		"txn":     txn.TransactionNo,
	}).Info("hype earned")
	e.notifier.Notify(userID, next)

	return &EarnResult{Amount: amount, Multiplier: factor, Transaction: txn, Balance: next.Clone()}, nil
}

// Spend debits the free pool, or the paid pool when usePaid is set. Free
// spending on a gated tier also needs room in the sustainability budget.
func (e *Engine) Spend(ctx context.Context, userID, optionID string, usePaid bool) (*SpendResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("spend: %w: empty user id", ErrInvalidArgument)
	}
	option, err := e.catalog.SpendingOption(optionID)
	if err != nil {
		return nil, fmt.Errorf("spend: %w", err)
	}

	unlock, err := e.lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("spend %s: %w", optionID, err)
	}
	defer unlock()

	claims, err := e.loadClaims(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("spend %s: %w", optionID, err)
	}
	now := e.now().UTC()
	if wait := e.tracker.CooldownRemaining(claims, option.ID, option.Cooldown, now); wait > 0 {
		return nil, fmt.Errorf("spend %s: %w: retry in %s", optionID, ErrCooldownActive, wait.Round(time.Second))
	}

	current, err := e.balances.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("spend %s: %w", optionID, err)
	}

	delta := Delta{}
	pool := model.PoolFree
	if usePaid {
		pool = model.PoolPaid
		delta.Paid = -option.Cost
		if current.Paid < option.Cost {
			return nil, fmt.Errorf("spend %s: %w: have %d, need %d", optionID, ErrInsufficientPaidBalance, current.Paid, option.Cost)
		}
	} else {
		delta.Free = -option.Cost
		if current.Free < option.Cost {
			return nil, fmt.Errorf("spend %s: %w: have %d, need %d", optionID, ErrInsufficientFreeBalance, current.Free, option.Cost)
		}
		if e.sustainability.Gates(option.Tier) && !e.sustainability.CanSpendFree(option.Cost) {
			return nil, fmt.Errorf("spend %s (%s tier): %w", optionID, option.Tier, ErrSustainabilityBudgetExceeded)
		}
	}

	meta := map[string]interface{}{
		model.MetaSource: option.ID,
		model.MetaTier:   string(option.Tier),
	}
	txn := e.newTransaction(userID, -option.Cost, model.TransactionTypeSpent, option.Category, pool, option.Description, meta, now)
	delta.Txn = txn

	batch := &Batch{}
	next, err := e.balances.ApplyDelta(batch, current, delta)
	if err != nil {
		return nil, fmt.Errorf("spend %s: %w", optionID, err)
	}
	if option.Cooldown > 0 {
		batch.Claims = append(batch.Claims, e.tracker.RecordSpend(claims, userID, option.ID, now))
	}

	if err := e.balances.Commit(ctx, batch); err != nil {
		return nil, fmt.Errorf("spend %s: %w", optionID, err)
	}

	log.WithFields(log.Fields{
		"user_id":   userID,
		"option_id": option.ID,
		"cost":      option.Cost,
		"pool":      pool,
		"txn":       txn.TransactionNo,
	}).Info("hype spent")
	e.notifier.Notify(userID, next)

	return &SpendResult{Cost: option.Cost, Pool: pool, Transaction: txn, Balance: next.Clone()}, nil
}

// Purchase credits the paid pool for a settled payment and recognizes the
// package price as revenue, in one commit. paymentRef identifies the settled
// payment; replaying it for the same user returns the original receipt with
// Replayed set and credits nothing.
func (e *Engine) Purchase(ctx context.Context, userID, packageID, paymentRef string) (*PurchaseResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("purchase: %w: empty user id", ErrInvalidArgument)
	}
	if paymentRef == "" {
		return nil, fmt.Errorf("purchase: %w: empty payment reference", ErrInvalidArgument)
	}
	pkg, err := e.catalog.PurchasePackage(packageID)
	if err != nil {
		return nil, fmt.Errorf("purchase: %w", err)
	}

	unlock, err := e.lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("purchase %s: %w", packageID, err)
	}
	defer unlock()

	if res, err := e.replayPurchase(ctx, userID, packageID, paymentRef); res != nil || err != nil {
		return res, err
	}

	current, err := e.balances.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("purchase %s: %w", packageID, err)
	}

	now := e.now().UTC()
	hype := pkg.TotalHype()
	meta := map[string]interface{}{
		model.MetaSource:     pkg.ID,
		model.MetaPackageID:  pkg.ID,
		model.MetaPaymentRef: paymentRef,
	}
	txn := e.newTransaction(userID, hype, model.TransactionTypePurchased, model.CategoryPurchase, model.PoolPaid, pkg.Description, meta, now)

	batch := &Batch{RevenueDelta: pkg.Price}
	next, err := e.balances.ApplyDelta(batch, current, Delta{Paid: hype, Txn: txn})
	if err != nil {
		return nil, fmt.Errorf("purchase %s: %w", packageID, err)
	}
	batch.Receipt = &model.PurchaseReceipt{
		PaymentRef:    paymentRef,
		UserID:        userID,
		PackageID:     pkg.ID,
		TransactionNo: txn.TransactionNo,
		Hype:          hype,
		Price:         pkg.Price,
		CreatedAt:     now,
	}

	e.revenueMu.RLock()
	err = e.balances.Commit(ctx, batch)
	if err == nil {
		e.sustainability.RecordRevenue(pkg.Price)
	}
	e.revenueMu.RUnlock()

	if errors.Is(err, ErrReceiptExists) {
		// another request with the same reference won the race
		if res, rerr := e.replayPurchase(ctx, userID, packageID, paymentRef); res != nil || rerr != nil {
			return res, rerr
		}
		return nil, fmt.Errorf("purchase %s: %w", packageID, storageError("commit", err))
	}
	if err != nil {
		return nil, fmt.Errorf("purchase %s: %w", packageID, err)
	}

	log.WithFields(log.Fields{
		"user_id":     userID,
		"package_id":  pkg.ID,
		"hype":        hype,
		"price":       pkg.Price.StringFixed(2),
		"payment_ref": paymentRef,
		"txn":         txn.TransactionNo,
	}).Info("hype purchased")
	e.notifier.Notify(userID, next)

	return &PurchaseResult{
		Hype:        hype,
		Price:       pkg.Price,
		Receipt:     batch.Receipt,
		Transaction: txn,
		Balance:     next.Clone(),
	}, nil
}

// replayPurchase returns nil, nil when paymentRef has not been credited yet.
func (e *Engine) replayPurchase(ctx context.Context, userID, packageID, paymentRef string) (*PurchaseResult, error) {
	receipt, err := e.store.FindReceipt(ctx, paymentRef)
	if err != nil {
		return nil, fmt.Errorf("purchase %s: %w", packageID, storageError("find receipt", err))
	}
	if receipt == nil {
		return nil, nil
	}
	if receipt.UserID != userID || receipt.PackageID != packageID {
		return nil, fmt.Errorf("purchase %s: %w: payment reference %q already used for another purchase", packageID, ErrInvalidArgument, paymentRef)
	}

	current, err := e.balances.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("purchase %s: %w", packageID, err)
	}
	log.WithFields(log.Fields{
		"user_id":     userID,
		"payment_ref": paymentRef,
		"txn":         receipt.TransactionNo,
	}).Info("purchase replayed")

	return &PurchaseResult{
		Hype:     receipt.Hype,
		Price:    receipt.Price,
		Replayed: true,
		Receipt:  receipt,
		Balance:  current,
	}, nil
}

// Gift moves amount of paid HYPE from one user to another. Both legs commit
// together and reference each other.
func (e *Engine) Gift(ctx context.Context, fromUserID, toUserID string, amount int64, message string) (*GiftResult, error) {
	if fromUserID == "" || toUserID == "" {
		return nil, fmt.Errorf("gift: %w: empty user id", ErrInvalidArgument)
	}
	if fromUserID == toUserID {
		return nil, fmt.Errorf("gift: %w: cannot gift to yourself", ErrInvalidArgument)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("gift: %w: amount must be positive, got %d", ErrInvalidArgument, amount)
	}

	unlock, err := e.lock(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, fmt.Errorf("gift: %w", err)
	}
	defer unlock()

	from, err := e.balances.Get(ctx, fromUserID)
	if err != nil {
		return nil, fmt.Errorf("gift: %w", err)
	}
	if from.Paid < amount {
		return nil, fmt.Errorf("gift: %w: have %d, need %d", ErrInsufficientPaidBalance, from.Paid, amount)
	}
	to, err := e.balances.Get(ctx, toUserID)
	if err != nil {
		return nil, fmt.Errorf("gift: %w", err)
	}

	now := e.now().UTC()
	debitNo, creditNo := e.nextTxnNo(), e.nextTxnNo()

	debitMeta := map[string]interface{}{
		model.MetaCounterpartUserID: toUserID,
		model.MetaCounterpartTxn:    creditNo,
	}
	creditMeta := map[string]interface{}{
		model.MetaCounterpartUserID: fromUserID,
		model.MetaCounterpartTxn:    debitNo,
	}
	if message != "" {
		debitMeta[model.MetaMessage] = message
		creditMeta[model.MetaMessage] = message
	}

	debit := e.newTransaction(fromUserID, -amount, model.TransactionTypeGifted, model.CategoryGift, model.PoolPaid,
		fmt.Sprintf("Gift to %s", toUserID), debitMeta, now)
	debit.TransactionNo = debitNo
	credit := e.newTransaction(toUserID, amount, model.TransactionTypeGifted, model.CategoryGift, model.PoolPaid,
		fmt.Sprintf("Gift from %s", fromUserID), creditMeta, now)
	credit.TransactionNo = creditNo

	batch := &Batch{}
	nextFrom, err := e.balances.ApplyDelta(batch, from, Delta{Paid: -amount, Txn: debit})
	if err != nil {
		return nil, fmt.Errorf("gift: %w", err)
	}
	nextTo, err := e.balances.ApplyDelta(batch, to, Delta{Paid: amount, Txn: credit})
	if err != nil {
		return nil, fmt.Errorf("gift: %w", err)
	}

	if err := e.balances.Commit(ctx, batch); err != nil {
		return nil, fmt.Errorf("gift: %w", err)
	}

	log.WithFields(log.Fields{
		"from_user_id": fromUserID,
		"to_user_id":   toUserID,
		"amount":       amount,
		"debit_txn":    debitNo,
		"credit_txn":   creditNo,
	}).Info("hype gifted")
	e.notifier.Notify(fromUserID, nextFrom)
	e.notifier.Notify(toUserID, nextTo)

	return &GiftResult{
		Amount: amount,
		Debit:  debit,
		Credit: credit,
		From:   nextFrom.Clone(),
		To:     nextTo.Clone(),
	}, nil
}

// ============================================================================
// Queries
// ============================================================================

// Balance returns the user's current balance; unknown users start at zero.
func (e *Engine) Balance(ctx context.Context, userID string) (*model.Balance, error) {
	if userID == "" {
		return nil, fmt.Errorf("balance: %w: empty user id", ErrInvalidArgument)
	}
	return e.balances.Get(ctx, userID)
}

// History returns a page of the user's transactions, most recent first, and
// the total count. limit <= 0 selects DefaultHistoryLimit.
func (e *Engine) History(ctx context.Context, userID string, limit, offset int) ([]*model.Transaction, int64, error) {
	if userID == "" {
		return nil, 0, fmt.Errorf("history: %w: empty user id", ErrInvalidArgument)
	}
	if offset < 0 {
		return nil, 0, fmt.Errorf("history: %w: negative offset", ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	txns, total, err := e.store.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, storageError("list transactions", err)
	}
	return txns, total, nil
}

// Transaction returns one of the user's transactions by number. Numbers
// belonging to another user are reported as not found.
func (e *Engine) Transaction(ctx context.Context, userID, transactionNo string) (*model.Transaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("transaction: %w: empty user id", ErrInvalidArgument)
	}
	if _, err := idgen.ParseTransactionNo(transactionNo); err != nil {
		return nil, fmt.Errorf("transaction: %w: %w", ErrInvalidArgument, err)
	}

	txn, err := e.store.FindTransaction(ctx, transactionNo)
	if err != nil {
		return nil, storageError("find transaction", err)
	}
	if txn == nil || txn.UserID != userID {
		return nil, fmt.Errorf("transaction %s: %w", transactionNo, ErrNotFound)
	}
	return txn, nil
}

// EarningOpportunities lists the earning rules the user can still claim in
// the current window.
func (e *Engine) EarningOpportunities(ctx context.Context, userID string) ([]catalog.EarningRule, error) {
	if userID == "" {
		return nil, fmt.Errorf("earning opportunities: %w: empty user id", ErrInvalidArgument)
	}
	claims, err := e.loadClaims(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	return e.catalog.ListEarningOpportunities(func(r catalog.EarningRule) bool {
		return e.tracker.HasClaimed(claims, r.ID, r.Frequency, now)
	}), nil
}

func (e *Engine) Sustainability() SustainabilityState {
	return e.sustainability.Snapshot()
}

func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

func (e *Engine) Notifier() *ChangeNotifier {
	return e.notifier
}

// ============================================================================
// helpers
// ============================================================================

func (e *Engine) lock(ctx context.Context, userIDs ...string) (func(), error) {
	unlock, err := e.locker.Lock(ctx, userIDs...)
	if err != nil {
		if errors.Is(err, ErrStorageUnavailable) {
			return nil, err
		}
		return nil, storageError("lock", err)
	}
	return unlock, nil
}

func (e *Engine) loadClaims(ctx context.Context, userID string) (Claims, error) {
	list, err := e.store.LoadClaims(ctx, userID)
	if err != nil {
		return nil, storageError("load claims", err)
	}
	return NewClaims(list), nil
}

func (e *Engine) newTransaction(userID string, amount int64, typ, category, pool, description string, meta map[string]interface{}, now time.Time) *model.Transaction {
	return &model.Transaction{
		TransactionNo: e.nextTxnNo(),
		UserID:        userID,
		Amount:        amount,
		Type:          typ,
		Category:      category,
		Pool:          pool,
		Description:   description,
		Metadata:      meta,
		CreatedAt:     now,
	}
}

// validateMetadata accepts flat JSON-like objects: keys are non-empty and
// values are nil, bools, strings or numbers.
func validateMetadata(metadata map[string]interface{}) error {
	for k, v := range metadata {
		if k == "" {
			return fmt.Errorf("%w: metadata key is empty", ErrInvalidArgument)
		}
		switch v.(type) {
		case nil, bool, string,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
		default:
			return fmt.Errorf("%w: metadata %q has unsupported type %T", ErrInvalidArgument, k, v)
		}
	}
	return nil
}
