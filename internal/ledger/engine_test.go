package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hypeledger/internal/catalog"
	"hypeledger/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// failingStore fails every Commit while fail is set.
type failingStore struct {
	*MemoryStore
	mu   sync.Mutex
	fail bool
}

func (s *failingStore) setFail(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

func (s *failingStore) Commit(ctx context.Context, batch *Batch) error {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	if fail {
		return errors.New("disk on fire")
	}
	return s.MemoryStore.Commit(ctx, batch)
}

func newTestEngine(t *testing.T, store Store) (*Engine, *fakeClock) {
	t.Helper()
	if store == nil {
		store = NewMemoryStore()
	}
	clock := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	e, err := NewEngine(Options{
		Catalog: catalog.Default(),
		Store:   store,
		Clock:   clock.Now,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := e.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return e, clock
}

func assertPools(t *testing.T, e *Engine, userID string, free, paid int64) *model.Balance {
	t.Helper()
	b, err := e.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance %s: %v", userID, err)
	}
	if b.Free != free || b.Paid != paid || b.Total != free+paid {
		t.Fatalf("balance %s = free:%d paid:%d total:%d, want free:%d paid:%d", userID, b.Free, b.Paid, b.Total, free, paid)
	}
	return b
}

func TestEngineScenario(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	assertPools(t, e, "u", 0, 0)

	if _, err := e.Earn(ctx, "u", "welcome", nil); err != nil {
		t.Fatalf("earn welcome: %v", err)
	}
	assertPools(t, e, "u", 100, 0)

	if _, err := e.Earn(ctx, "u", "daily-login", nil); err != nil {
		t.Fatalf("earn daily-login: %v", err)
	}
	assertPools(t, e, "u", 110, 0)

	if _, err := e.Spend(ctx, "u", "basic-sticker", false); err != nil {
		t.Fatalf("spend basic-sticker: %v", err)
	}
	assertPools(t, e, "u", 85, 0)

	res, err := e.Purchase(ctx, "u", "starter", "pay-1")
	if err != nil {
		t.Fatalf("purchase starter: %v", err)
	}
	if res.Hype != 500 || res.Replayed {
		t.Fatalf("unexpected purchase result %+v", res)
	}
	assertPools(t, e, "u", 85, 500)
	if got := e.Sustainability().TotalRevenue; !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected total revenue 5, got %s", got)
	}

	if _, err := e.Gift(ctx, "u", "v", 200, "gg"); err != nil {
		t.Fatalf("gift: %v", err)
	}
	u := assertPools(t, e, "u", 85, 300)
	assertPools(t, e, "v", 0, 200)

	if u.Earned != 110 || u.Spent != 25 || u.Purchased != 500 || u.Gifted != 200 {
		t.Fatalf("unexpected counters %+v", u)
	}

	txns, total, err := e.History(ctx, "u", 0, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 5 || len(txns) != 5 {
		t.Fatalf("expected 5 transactions, got %d/%d", len(txns), total)
	}
	wantTypes := []string{
		model.TransactionTypeGifted,
		model.TransactionTypePurchased,
		model.TransactionTypeSpent,
		model.TransactionTypeEarned,
		model.TransactionTypeEarned,
	}
	for i, want := range wantTypes {
		if txns[i].Type != want {
			t.Fatalf("history[%d].type = %s, want %s", i, txns[i].Type, want)
		}
	}
}

func TestEarnOnceIsIdempotentUnderConcurrency(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	const n = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Earn(ctx, "u", "welcome", nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrAlreadyClaimed):
				rejected++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || rejected != n-1 {
		t.Fatalf("expected 1 success and %d rejections, got %d/%d", n-1, ok, rejected)
	}
	assertPools(t, e, "u", 100, 0)

	if _, err := e.Earn(ctx, "u", "welcome", nil); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected sequential replay rejected, got %v", err)
	}
}

func TestEarnDailyWindow(t *testing.T) {
	e, clock := newTestEngine(t, nil)
	ctx := context.Background()
	clock.now = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	if _, err := e.Earn(ctx, "u", "daily-login", nil); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	clock.Advance(23*time.Hour + 59*time.Minute)
	if _, err := e.Earn(ctx, "u", "daily-login", nil); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected same-day claim rejected, got %v", err)
	}
	clock.Advance(2 * time.Minute) // T + 24h01m
	if _, err := e.Earn(ctx, "u", "daily-login", nil); err != nil {
		t.Fatalf("next-day claim: %v", err)
	}
	assertPools(t, e, "u", 20, 0)
}

func TestEarnMultipliers(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	res, err := e.Earn(ctx, "u", "content-share", map[string]interface{}{"trending": true})
	if err != nil {
		t.Fatalf("earn: %v", err)
	}
	if res.Amount != 50 {
		t.Fatalf("expected 25 x 2.0 = 50, got %d", res.Amount)
	}
	if got := res.Transaction.Meta(model.MetaMultiplier); got != "2" {
		t.Fatalf("expected multiplier metadata 2, got %q", got)
	}
	if got := res.Transaction.Meta(model.MetaSource); got != "content-share" {
		t.Fatalf("expected source metadata, got %q", got)
	}

	res, err = e.Earn(ctx, "u", "content-share", map[string]interface{}{"verified": true})
	if err != nil {
		t.Fatalf("earn: %v", err)
	}
	if res.Amount != 37 {
		t.Fatalf("expected 25 x 1.5 = 37, got %d", res.Amount)
	}

	res, err = e.Earn(ctx, "u", "content-share", map[string]interface{}{"trending": false, "verified": ""})
	if err != nil {
		t.Fatalf("earn: %v", err)
	}
	if res.Amount != 25 {
		t.Fatalf("expected falsy conditions ignored, got %d", res.Amount)
	}

	for _, zero := range []interface{}{uint(0), uint8(0), int8(0), int16(0), uint64(0)} {
		res, err = e.Earn(ctx, "u", "content-share", map[string]interface{}{"trending": zero})
		if err != nil {
			t.Fatalf("earn with %T zero: %v", zero, err)
		}
		if res.Amount != 25 {
			t.Fatalf("expected %T zero to leave reward at 25, got %d", zero, res.Amount)
		}
	}

	if _, err := e.Earn(ctx, "u", "content-share", map[string]interface{}{"trending": []int{1}}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected malformed metadata rejected, got %v", err)
	}
}

func TestGiftConservation(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := e.Purchase(ctx, "a", "popular", "pay-a"); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := e.Purchase(ctx, "b", "starter", "pay-b"); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	assertPools(t, e, "a", 0, 1300)
	assertPools(t, e, "b", 0, 500)

	res, err := e.Gift(ctx, "a", "b", 300, "congrats")
	if err != nil {
		t.Fatalf("gift: %v", err)
	}
	a := assertPools(t, e, "a", 0, 1000)
	b := assertPools(t, e, "b", 0, 800)
	if a.Paid+b.Paid != 1800 {
		t.Fatalf("pair sum changed: %d", a.Paid+b.Paid)
	}
	if a.Gifted != 300 || b.Received != 300 {
		t.Fatalf("unexpected gift counters a=%+v b=%+v", a, b)
	}

	if res.Debit.Amount != -300 || res.Credit.Amount != 300 {
		t.Fatalf("unexpected legs %d/%d", res.Debit.Amount, res.Credit.Amount)
	}
	if res.Debit.Type != model.TransactionTypeGifted || res.Credit.Type != model.TransactionTypeGifted {
		t.Fatalf("expected both legs typed gifted")
	}
	if res.Debit.Meta(model.MetaCounterpartTxn) != res.Credit.TransactionNo ||
		res.Credit.Meta(model.MetaCounterpartTxn) != res.Debit.TransactionNo {
		t.Fatalf("legs do not reference each other: %+v / %+v", res.Debit.Metadata, res.Credit.Metadata)
	}
	if res.Debit.Meta(model.MetaCounterpartUserID) != "b" || res.Credit.Meta(model.MetaCounterpartUserID) != "a" {
		t.Fatalf("unexpected counterpart users")
	}
	if res.Credit.Meta(model.MetaMessage) != "congrats" {
		t.Fatalf("expected message recorded")
	}

	txns, _, err := e.History(ctx, "b", 1, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(txns) != 1 || txns[0].TransactionNo != res.Credit.TransactionNo {
		t.Fatalf("expected credit leg at the top of b's history")
	}
}

func TestGiftValidation(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := e.Earn(ctx, "a", "welcome", nil); err != nil {
		t.Fatalf("earn: %v", err)
	}

	cases := []struct {
		name   string
		from   string
		to     string
		amount int64
		want   error
	}{
		{"self", "a", "a", 10, ErrInvalidArgument},
		{"zero", "a", "b", 0, ErrInvalidArgument},
		{"negative", "a", "b", -5, ErrInvalidArgument},
		{"empty recipient", "a", "", 5, ErrInvalidArgument},
		{"free currency is not giftable", "a", "b", 10, ErrInsufficientPaidBalance},
	}
	for _, tc := range cases {
		if _, err := e.Gift(ctx, tc.from, tc.to, tc.amount, ""); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	assertPools(t, e, "a", 100, 0)
	assertPools(t, e, "b", 0, 0)
}

func TestGiftOppositeDirectionsConcurrently(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := e.Purchase(ctx, "a", "elite", "pay-a"); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := e.Purchase(ctx, "b", "elite", "pay-b"); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := e.Gift(ctx, "a", "b", 7, ""); err != nil {
				t.Errorf("a->b: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := e.Gift(ctx, "b", "a", 7, ""); err != nil {
				t.Errorf("b->a: %v", err)
			}
		}()
	}
	wg.Wait()

	assertPools(t, e, "a", 0, 8500)
	assertPools(t, e, "b", 0, 8500)
}

func TestSpendSustainabilityGating(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := e.Earn(ctx, "u", "welcome", nil); err != nil {
		t.Fatalf("earn: %v", err)
	}
	if _, err := e.Earn(ctx, "u", "academic-milestone", nil); err != nil {
		t.Fatalf("earn: %v", err)
	}
	assertPools(t, e, "u", 300, 0)

	if _, err := e.Spend(ctx, "u", "ai-highlight-reel", false); !errors.Is(err, ErrSustainabilityBudgetExceeded) {
		t.Fatalf("expected budget exceeded with zero revenue, got %v", err)
	}
	assertPools(t, e, "u", 300, 0)

	// $10 / 2.3 = $4.34 >= $3.00
	if _, err := e.Purchase(ctx, "someone-else", "popular", "pay-x"); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	res, err := e.Spend(ctx, "u", "ai-highlight-reel", false)
	if err != nil {
		t.Fatalf("expected spend allowed after revenue, got %v", err)
	}
	if res.Pool != model.PoolFree || res.Transaction.Meta(model.MetaTier) != string(catalog.TierPremium) {
		t.Fatalf("unexpected spend result %+v", res)
	}
	assertPools(t, e, "u", 0, 0)
}

func TestSpendPaidBypassesSustainability(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := e.Purchase(ctx, "u", "pro", "pay-1"); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	// controller reset simulates a stale view; paid spending ignores it
	e.sustainability.Reset(decimal.Zero)

	if _, err := e.Spend(ctx, "u", "priority-review", true); err != nil {
		t.Fatalf("paid spend: %v", err)
	}
	assertPools(t, e, "u", 0, 2000)

	if _, err := e.Spend(ctx, "u", "basic-sticker", false); !errors.Is(err, ErrInsufficientFreeBalance) {
		t.Fatalf("expected insufficient free balance, got %v", err)
	}
	if _, err := e.Spend(ctx, "u", "nope", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSpendCooldown(t *testing.T) {
	e, clock := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := e.Earn(ctx, "u", "welcome", nil); err != nil {
		t.Fatalf("earn: %v", err)
	}
	if _, err := e.Spend(ctx, "u", "ai-caption", false); err != nil {
		t.Fatalf("first spend: %v", err)
	}
	clock.Advance(30 * time.Second)
	if _, err := e.Spend(ctx, "u", "ai-caption", false); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected cooldown, got %v", err)
	}
	clock.Advance(31 * time.Second)
	if _, err := e.Spend(ctx, "u", "ai-caption", false); err != nil {
		t.Fatalf("spend after cooldown: %v", err)
	}
	assertPools(t, e, "u", 0, 0)
}

func TestPurchaseReplay(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	first, err := e.Purchase(ctx, "u", "popular", "pay-1")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if first.Hype != 1300 || first.Replayed {
		t.Fatalf("unexpected first result %+v", first)
	}

	again, err := e.Purchase(ctx, "u", "popular", "pay-1")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !again.Replayed || again.Receipt.TransactionNo != first.Transaction.TransactionNo {
		t.Fatalf("expected replay of %s, got %+v", first.Transaction.TransactionNo, again)
	}
	assertPools(t, e, "u", 0, 1300)
	if got := e.Sustainability().TotalRevenue; !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected revenue counted once, got %s", got)
	}

	if _, err := e.Purchase(ctx, "v", "popular", "pay-1"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected reference reuse by another user rejected, got %v", err)
	}
	if _, err := e.Purchase(ctx, "u", "elite", "pay-1"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected reference reuse for another package rejected, got %v", err)
	}
	if _, err := e.Purchase(ctx, "u", "popular", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected empty reference rejected, got %v", err)
	}
	if _, err := e.Purchase(ctx, "u", "mega", "pay-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected unknown package, got %v", err)
	}
}

func TestPurchaseReplayConcurrent(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	credited := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Purchase(ctx, "u", "starter", "pay-dup")
			if err != nil {
				t.Errorf("purchase: %v", err)
				return
			}
			if !res.Replayed {
				mu.Lock()
				credited++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if credited != 1 {
		t.Fatalf("expected exactly one credit, got %d", credited)
	}
	assertPools(t, e, "u", 0, 500)
}

func TestFailedCommitLeavesNoTrace(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore()}
	e, _ := newTestEngine(t, store)
	ctx := context.Background()

	if _, err := e.Purchase(ctx, "u", "starter", "pay-ok"); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	store.setFail(true)

	if _, err := e.Earn(ctx, "u", "welcome", nil); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if _, err := e.Purchase(ctx, "u", "elite", "pay-fail"); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if _, err := e.Gift(ctx, "u", "v", 100, ""); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected storage error, got %v", err)
	}

	assertPools(t, e, "u", 0, 500)
	assertPools(t, e, "v", 0, 0)
	if got := e.Sustainability().TotalRevenue; !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected revenue untouched, got %s", got)
	}
	if r, _ := store.FindReceipt(ctx, "pay-fail"); r != nil {
		t.Fatalf("expected no receipt for failed purchase")
	}

	// the failed earn must not have consumed the one-time claim
	store.setFail(false)
	if _, err := e.Earn(ctx, "u", "welcome", nil); err != nil {
		t.Fatalf("earn after recovery: %v", err)
	}
	assertPools(t, e, "u", 100, 500)
}

func TestEarningOpportunities(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	all, err := e.EarningOpportunities(ctx, "u")
	if err != nil {
		t.Fatalf("opportunities: %v", err)
	}
	if len(all) != len(e.Catalog().EarningRules()) {
		t.Fatalf("expected every rule for a new user, got %d", len(all))
	}

	for _, id := range []string{"welcome", "daily-login", "referral"} {
		if _, err := e.Earn(ctx, "u", id, nil); err != nil {
			t.Fatalf("earn %s: %v", id, err)
		}
	}
	left, err := e.EarningOpportunities(ctx, "u")
	if err != nil {
		t.Fatalf("opportunities: %v", err)
	}
	if len(left) != len(all)-2 {
		t.Fatalf("expected welcome and daily-login removed, got %d rules", len(left))
	}
	for _, r := range left {
		if r.ID == "welcome" || r.ID == "daily-login" {
			t.Fatalf("exhausted rule %s listed", r.ID)
		}
	}
}

func TestInitLoadsRevenue(t *testing.T) {
	store := NewMemoryStore()
	store.revenue = decimal.NewFromInt(23)

	e, _ := newTestEngine(t, store)
	if got := e.Sustainability().FreeHypeBudget; !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected budget 10 from persisted revenue 23, got %s", got)
	}
}

func TestEngineNotifiesAfterCommit(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	var (
		mu  sync.Mutex
		got = map[string]int64{}
	)
	e.Notifier().Subscribe(func(userID string, b *model.Balance) {
		mu.Lock()
		defer mu.Unlock()
		got[userID] += 1
	})

	if _, err := e.Purchase(ctx, "a", "starter", "pay-1"); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := e.Gift(ctx, "a", "b", 10, ""); err != nil {
		t.Fatalf("gift: %v", err)
	}
	if _, err := e.Earn(ctx, "a", "nope", nil); err == nil {
		t.Fatalf("expected failure")
	}
	e.Notifier().Wait()

	mu.Lock()
	defer mu.Unlock()
	if got["a"] != 2 || got["b"] != 1 {
		t.Fatalf("unexpected notifications %v", got)
	}
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	users := []string{"u0", "u1", "u2", "u3", "u4"}
	rules := []string{"welcome", "daily-login", "content-share", "referral", "academic-milestone"}
	options := []string{"basic-sticker", "ai-highlight-reel", "priority-review"}
	packages := []string{"starter", "popular"}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 60; i++ {
				u := users[rng.Intn(len(users))]
				var err error
				switch rng.Intn(4) {
				case 0:
					_, err = e.Earn(ctx, u, rules[rng.Intn(len(rules))], map[string]interface{}{"trending": rng.Intn(2) == 1})
				case 1:
					_, err = e.Spend(ctx, u, options[rng.Intn(len(options))], rng.Intn(2) == 1)
				case 2:
					_, err = e.Purchase(ctx, u, packages[rng.Intn(len(packages))], fmt.Sprintf("pay-%d-%d", seed, i))
				case 3:
					_, err = e.Gift(ctx, u, users[rng.Intn(len(users))], rng.Int63n(400)+1, "")
				}
				if errors.Is(err, ErrStorageUnavailable) {
					t.Errorf("unexpected storage error: %v", err)
				}
			}
		}(int64(w + 1))
	}
	wg.Wait()

	var paidIn, paidOut, paidHeld int64
	for _, u := range users {
		b, err := e.Balance(ctx, u)
		if err != nil {
			t.Fatalf("balance: %v", err)
		}
		if b.Free < 0 || b.Paid < 0 || b.Total != b.Free+b.Paid {
			t.Fatalf("invariant broken for %s: %+v", u, b)
		}
		if b.Free != b.Earned-freeSpent(t, e, u) {
			t.Fatalf("free pool of %s does not reconcile with history", u)
		}
		paidIn += b.Purchased
		paidHeld += b.Paid
		paidOut += paidSpent(t, e, u)
	}
	if paidIn-paidOut != paidHeld {
		t.Fatalf("paid HYPE not conserved: in=%d out=%d held=%d", paidIn, paidOut, paidHeld)
	}
}

func freeSpent(t *testing.T, e *Engine, userID string) int64 {
	return spentFrom(t, e, userID, model.PoolFree)
}

func paidSpent(t *testing.T, e *Engine, userID string) int64 {
	return spentFrom(t, e, userID, model.PoolPaid)
}

func spentFrom(t *testing.T, e *Engine, userID, pool string) int64 {
	t.Helper()
	var total int64
	offset := 0
	for {
		txns, count, err := e.History(context.Background(), userID, MaxHistoryLimit, offset)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		for _, txn := range txns {
			if txn.Type == model.TransactionTypeSpent && txn.Pool == pool {
				total += -txn.Amount
			}
		}
		offset += len(txns)
		if int64(offset) >= count || len(txns) == 0 {
			return total
		}
	}
}

func TestTransactionLookup(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	res, err := e.Earn(ctx, "u", "welcome", nil)
	if err != nil {
		t.Fatalf("earn: %v", err)
	}
	no := res.Transaction.TransactionNo

	got, err := e.Transaction(ctx, "u", no)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Amount != 100 || got.Type != model.TransactionTypeEarned {
		t.Fatalf("unexpected transaction %+v", got)
	}

	if _, err := e.Transaction(ctx, "someone-else", no); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected another user's transaction hidden, got %v", err)
	}
	if _, err := e.Transaction(ctx, "u", "TXN1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected unknown number not found, got %v", err)
	}
	if _, err := e.Transaction(ctx, "u", "ORD42"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected malformed number rejected, got %v", err)
	}
}
