// Package catalog holds the read-only economy configuration: earning rules,
// spending options and purchase packages.
package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("catalog entry not found")

// Frequency limits how often an earning rule may be claimed.
type Frequency string

const (
	FrequencyOnce      Frequency = "once"
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyUnlimited Frequency = "unlimited"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyUnlimited:
		return true
	}
	return false
}

// Tier is the access tier of a spending option.
type Tier string

const (
	TierFree         Tier = "free"
	TierPremium      Tier = "premium"
	TierPaidPriority Tier = "paid-priority"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPremium, TierPaidPriority:
		return true
	}
	return false
}

// Multiplier scales an earning reward when Condition is truthy in the
// metadata supplied at earn time.
type Multiplier struct {
	Condition string
	Factor    decimal.Decimal
}

type EarningRule struct {
	ID          string
	Category    string
	Amount      int64
	Frequency   Frequency
	Description string
	Conditions  []string // informational only
	Multipliers []Multiplier
}

// Reward returns the amount credited for this rule given the caller's
// metadata, plus the combined factor that was applied.
//
// Matched multipliers compose in catalog order and the running amount is
// truncated toward zero after every step, so no fractional HYPE is ever
// produced: 25 × 1.5 = 37.
func (r EarningRule) Reward(metadata map[string]interface{}) (int64, decimal.Decimal) {
	amount := r.Amount
	applied := decimal.NewFromInt(1)
	for _, m := range r.Multipliers {
		if !truthy(metadata[m.Condition]) {
			continue
		}
		amount = decimal.NewFromInt(amount).Mul(m.Factor).IntPart()
		applied = applied.Mul(m.Factor)
	}
	return amount, applied
}

type SpendingOption struct {
	ID          string
	Category    string
	Cost        int64
	Tier        Tier
	Description string
	Cooldown    time.Duration
}

type PurchasePackage struct {
	ID          string
	HypeAmount  int64
	Price       decimal.Decimal // USD
	Bonus       int64
	Description string
}

// TotalHype is what the buyer receives: the package amount plus its bonus.
func (p PurchasePackage) TotalHype() int64 {
	return p.HypeAmount + p.Bonus
}

// Catalog is immutable after New; it is safe for concurrent use.
type Catalog struct {
	rules    []EarningRule
	options  []SpendingOption
	packages []PurchasePackage

	ruleIdx    map[string]int
	optionIdx  map[string]int
	packageIdx map[string]int
}

// New validates the entries and builds a catalog. Order is preserved for
// listings.
func New(rules []EarningRule, options []SpendingOption, packages []PurchasePackage) (*Catalog, error) {
	c := &Catalog{
		rules:      append([]EarningRule(nil), rules...),
		options:    append([]SpendingOption(nil), options...),
		packages:   append([]PurchasePackage(nil), packages...),
		ruleIdx:    make(map[string]int, len(rules)),
		optionIdx:  make(map[string]int, len(options)),
		packageIdx: make(map[string]int, len(packages)),
	}

	for i, r := range c.rules {
		if r.ID == "" {
			return nil, fmt.Errorf("earning rule #%d: empty id", i)
		}
		if _, dup := c.ruleIdx[r.ID]; dup {
			return nil, fmt.Errorf("earning rule %q: duplicate id", r.ID)
		}
		if r.Amount <= 0 {
			return nil, fmt.Errorf("earning rule %q: amount must be positive", r.ID)
		}
		if !r.Frequency.Valid() {
			return nil, fmt.Errorf("earning rule %q: unknown frequency %q", r.ID, r.Frequency)
		}
		for _, m := range r.Multipliers {
			if m.Condition == "" || !m.Factor.IsPositive() {
				return nil, fmt.Errorf("earning rule %q: invalid multiplier %q=%s", r.ID, m.Condition, m.Factor)
			}
		}
		c.ruleIdx[r.ID] = i
	}

	for i, o := range c.options {
		if o.ID == "" {
			return nil, fmt.Errorf("spending option #%d: empty id", i)
		}
		if _, dup := c.optionIdx[o.ID]; dup {
			return nil, fmt.Errorf("spending option %q: duplicate id", o.ID)
		}
		if o.Cost <= 0 {
			return nil, fmt.Errorf("spending option %q: cost must be positive", o.ID)
		}
		if !o.Tier.Valid() {
			return nil, fmt.Errorf("spending option %q: unknown tier %q", o.ID, o.Tier)
		}
		if o.Cooldown < 0 {
			return nil, fmt.Errorf("spending option %q: negative cooldown", o.ID)
		}
		c.optionIdx[o.ID] = i
	}

	for i, p := range c.packages {
		if p.ID == "" {
			return nil, fmt.Errorf("purchase package #%d: empty id", i)
		}
		if _, dup := c.packageIdx[p.ID]; dup {
			return nil, fmt.Errorf("purchase package %q: duplicate id", p.ID)
		}
		if p.HypeAmount <= 0 || p.Bonus < 0 {
			return nil, fmt.Errorf("purchase package %q: invalid hype amount or bonus", p.ID)
		}
		if !p.Price.IsPositive() {
			return nil, fmt.Errorf("purchase package %q: price must be positive", p.ID)
		}
		c.packageIdx[p.ID] = i
	}

	return c, nil
}

func (c *Catalog) EarningRule(id string) (EarningRule, error) {
	i, ok := c.ruleIdx[id]
	if !ok {
		return EarningRule{}, fmt.Errorf("earning rule %q: %w", id, ErrNotFound)
	}
	return c.rules[i], nil
}

func (c *Catalog) SpendingOption(id string) (SpendingOption, error) {
	i, ok := c.optionIdx[id]
	if !ok {
		return SpendingOption{}, fmt.Errorf("spending option %q: %w", id, ErrNotFound)
	}
	return c.options[i], nil
}

func (c *Catalog) PurchasePackage(id string) (PurchasePackage, error) {
	i, ok := c.packageIdx[id]
	if !ok {
		return PurchasePackage{}, fmt.Errorf("purchase package %q: %w", id, ErrNotFound)
	}
	return c.packages[i], nil
}

func (c *Catalog) EarningRules() []EarningRule {
	return append([]EarningRule(nil), c.rules...)
}

func (c *Catalog) SpendingOptions() []SpendingOption {
	return append([]SpendingOption(nil), c.options...)
}

func (c *Catalog) PurchasePackages() []PurchasePackage {
	return append([]PurchasePackage(nil), c.packages...)
}

// ListEarningOpportunities returns the rules, in catalog order, for which
// exhausted reports false.
func (c *Catalog) ListEarningOpportunities(exhausted func(EarningRule) bool) []EarningRule {
	out := make([]EarningRule, 0, len(c.rules))
	for _, r := range c.rules {
		if exhausted != nil && exhausted(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// truthy follows the usual loose rules: nil, false, zero numbers and empty
// strings are false; anything else is true.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int8:
		return t != 0
	case int16:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case uint:
		return t != 0
	case uint8:
		return t != 0
	case uint16:
		return t != 0
	case uint32:
		return t != 0
	case uint64:
		return t != 0
	case float32:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}
