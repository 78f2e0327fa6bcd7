package ledger

import (
	"sync"

	"github.com/shopspring/decimal"

	"hypeledger/internal/catalog"
)

// Policy configures the sustainability rule.
//
// The free HYPE budget is TotalRevenue / CoverageRatio, in fiat. A spend of
// free HYPE on a gated tier is allowed only while the budget covers the
// spend's fiat value (cost / ConversionRate).
type Policy struct {
	CoverageRatio  decimal.Decimal // default 2.3
	ConversionRate int64           // HYPE per fiat unit, default 100
	GatedTiers     []catalog.Tier  // default premium, paid-priority
}

func DefaultPolicy() Policy {
	return Policy{
		CoverageRatio:  decimal.RequireFromString("2.3"),
		ConversionRate: 100,
		GatedTiers:     []catalog.Tier{catalog.TierPremium, catalog.TierPaidPriority},
	}
}

// SustainabilityState is a point-in-time view of the controller.
type SustainabilityState struct {
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	FreeHypeBudget decimal.Decimal `json:"free_hype_budget"`
	CoverageRatio  decimal.Decimal `json:"coverage_ratio"`
	ConversionRate int64           `json:"conversion_rate"`
}

// SustainabilityController is the process-wide revenue state. It has its own
// lock and never takes a user lock.
type SustainabilityController struct {
	mu             sync.RWMutex
	totalRevenue   decimal.Decimal
	freeHypeBudget decimal.Decimal

	coverage decimal.Decimal
	rate     decimal.Decimal
	rateInt  int64
	gated    map[catalog.Tier]bool
}

func NewSustainabilityController(p Policy) *SustainabilityController {
	def := DefaultPolicy()
	if !p.CoverageRatio.IsPositive() {
		p.CoverageRatio = def.CoverageRatio
	}
	if p.ConversionRate <= 0 {
		p.ConversionRate = def.ConversionRate
	}
	if p.GatedTiers == nil {
		p.GatedTiers = def.GatedTiers
	}

	c := &SustainabilityController{
		totalRevenue:   decimal.Zero,
		freeHypeBudget: decimal.Zero,
		coverage:       p.CoverageRatio,
		rate:           decimal.NewFromInt(p.ConversionRate),
		rateInt:        p.ConversionRate,
		gated:          make(map[catalog.Tier]bool, len(p.GatedTiers)),
	}
	for _, t := range p.GatedTiers {
		c.gated[t] = true
	}
	return c
}

// Gates reports whether free-HYPE spending on tier is throttled.
func (c *SustainabilityController) Gates(tier catalog.Tier) bool {
	return c.gated[tier]
}

// CanSpendFree reports whether the budget covers cost HYPE of free currency.
// The budget is a threshold; checking does not consume it.
func (c *SustainabilityController) CanSpendFree(cost int64) bool {
	costFiat := decimal.NewFromInt(cost).Div(c.rate)

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.freeHypeBudget.GreaterThanOrEqual(costFiat)
}

// RecordRevenue adds amount to total revenue and recomputes the budget.
func (c *SustainabilityController) RecordRevenue(amount decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setTotalLocked(c.totalRevenue.Add(amount))
}

// Reset replaces the total, e.g. with the value persisted by the store.
func (c *SustainabilityController) Reset(total decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setTotalLocked(total)
}

func (c *SustainabilityController) setTotalLocked(total decimal.Decimal) {
	c.totalRevenue = total
	c.freeHypeBudget = total.Div(c.coverage)
}

func (c *SustainabilityController) Snapshot() SustainabilityState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return SustainabilityState{
		TotalRevenue:   c.totalRevenue,
		FreeHypeBudget: c.freeHypeBudget,
		CoverageRatio:  c.coverage,
		ConversionRate: c.rateInt,
	}
}
