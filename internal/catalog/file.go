package catalog

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// fileCatalog mirrors the YAML layout:
//
//	earning_rules:
//	  - id: welcome
//	    category: onboarding
//	    amount: 100
//	    frequency: once
//	    multipliers:
//	      - condition: trending
//	        factor: "2.0"
//	spending_options:
//	  - id: basic-sticker
//	    cost: 25
//	    tier: free
//	    cooldown: 1m
//	purchase_packages:
//	  - id: starter
//	    hype_amount: 500
//	    price: "5.00"
type fileCatalog struct {
	EarningRules []struct {
		ID          string   `yaml:"id"`
		Category    string   `yaml:"category"`
		Amount      int64    `yaml:"amount"`
		Frequency   string   `yaml:"frequency"`
		Description string   `yaml:"description"`
		Conditions  []string `yaml:"conditions"`
		Multipliers []struct {
			Condition string `yaml:"condition"`
			Factor    string `yaml:"factor"`
		} `yaml:"multipliers"`
	} `yaml:"earning_rules"`
	SpendingOptions []struct {
		ID          string `yaml:"id"`
		Category    string `yaml:"category"`
		Cost        int64  `yaml:"cost"`
		Tier        string `yaml:"tier"`
		Description string `yaml:"description"`
		Cooldown    string `yaml:"cooldown"`
	} `yaml:"spending_options"`
	PurchasePackages []struct {
		ID          string `yaml:"id"`
		HypeAmount  int64  `yaml:"hype_amount"`
		Price       string `yaml:"price"`
		Bonus       int64  `yaml:"bonus"`
		Description string `yaml:"description"`
	} `yaml:"purchase_packages"`
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	rules := make([]EarningRule, 0, len(fc.EarningRules))
	for _, r := range fc.EarningRules {
		rule := EarningRule{
			ID:          r.ID,
			Category:    r.Category,
			Amount:      r.Amount,
			Frequency:   Frequency(r.Frequency),
			Description: r.Description,
			Conditions:  r.Conditions,
		}
		for _, m := range r.Multipliers {
			factor, err := decimal.NewFromString(m.Factor)
			if err != nil {
				return nil, fmt.Errorf("earning rule %q: multiplier %q: %w", r.ID, m.Condition, err)
			}
			rule.Multipliers = append(rule.Multipliers, Multiplier{Condition: m.Condition, Factor: factor})
		}
		rules = append(rules, rule)
	}

	options := make([]SpendingOption, 0, len(fc.SpendingOptions))
	for _, o := range fc.SpendingOptions {
		var cooldown time.Duration
		if o.Cooldown != "" {
			d, err := time.ParseDuration(o.Cooldown)
			if err != nil {
				return nil, fmt.Errorf("spending option %q: cooldown: %w", o.ID, err)
			}
			cooldown = d
		}
		options = append(options, SpendingOption{
			ID:          o.ID,
			Category:    o.Category,
			Cost:        o.Cost,
			Tier:        Tier(o.Tier),
			Description: o.Description,
			Cooldown:    cooldown,
		})
	}

	packages := make([]PurchasePackage, 0, len(fc.PurchasePackages))
	for _, p := range fc.PurchasePackages {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("purchase package %q: price: %w", p.ID, err)
		}
		packages = append(packages, PurchasePackage{
			ID:          p.ID,
			HypeAmount:  p.HypeAmount,
			Price:       price,
			Bonus:       p.Bonus,
			Description: p.Description,
		})
	}

	return New(rules, options, packages)
}
