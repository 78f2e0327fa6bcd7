package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"hypeledger/internal/model"
)

// Default returns the built-in catalog used when no catalog file is
// configured.
func Default() *Catalog {
	c, err := New(defaultRules(), defaultOptions(), defaultPackages())
	if err != nil {
		// the tables below are static; a failure here is a programming error
		panic("catalog: invalid default catalog: " + err.Error())
	}
	return c
}

func defaultRules() []EarningRule {
	return []EarningRule{
		{
			ID:          "welcome",
			Category:    model.CategoryOnboarding,
			Amount:      100,
			Frequency:   FrequencyOnce,
			Description: "Welcome bonus for joining",
		},
		{
			ID:          "profile-complete",
			Category:    model.CategoryOnboarding,
			Amount:      50,
			Frequency:   FrequencyOnce,
			Description: "Complete your athlete profile",
			Conditions:  []string{"profile 100% complete"},
		},
		{
			ID:          "daily-login",
			Category:    model.CategoryEngagement,
			Amount:      10,
			Frequency:   FrequencyDaily,
			Description: "Daily check-in",
			Multipliers: []Multiplier{
				{Condition: "streak", Factor: decimal.RequireFromString("1.5")},
			},
		},
		{
			ID:          "content-share",
			Category:    model.CategoryContent,
			Amount:      25,
			Frequency:   FrequencyUnlimited,
			Description: "Share a highlight or post",
			Multipliers: []Multiplier{
				{Condition: "trending", Factor: decimal.RequireFromString("2.0")},
				{Condition: "verified", Factor: decimal.RequireFromString("1.5")},
			},
		},
		{
			ID:          "weekly-challenge",
			Category:    model.CategoryEngagement,
			Amount:      75,
			Frequency:   FrequencyWeekly,
			Description: "Finish the weekly training challenge",
		},
		{
			ID:          "academic-milestone",
			Category:    model.CategoryAcademic,
			Amount:      200,
			Frequency:   FrequencyUnlimited,
			Description: "Report an academic milestone",
			Conditions:  []string{"verified by school"},
			Multipliers: []Multiplier{
				{Condition: "honors", Factor: decimal.RequireFromString("1.5")},
			},
		},
		{
			ID:          "referral",
			Category:    model.CategorySocial,
			Amount:      150,
			Frequency:   FrequencyUnlimited,
			Description: "Invite a teammate who signs up",
		},
	}
}

func defaultOptions() []SpendingOption {
	return []SpendingOption{
		{ID: "basic-sticker", Category: model.CategoryContent, Cost: 25, Tier: TierFree, Description: "Basic sticker pack"},
		{ID: "ai-caption", Category: model.CategoryContent, Cost: 50, Tier: TierFree, Description: "AI caption for a post", Cooldown: time.Minute},
		{ID: "ai-highlight-reel", Category: model.CategoryPremium, Cost: 300, Tier: TierPremium, Description: "AI-generated highlight reel"},
		{ID: "ai-recruiting-profile", Category: model.CategoryPremium, Cost: 500, Tier: TierPremium, Description: "AI recruiting profile", Cooldown: 24 * time.Hour},
		{ID: "priority-review", Category: model.CategoryPriority, Cost: 1000, Tier: TierPaidPriority, Description: "Priority coach review"},
	}
}

func defaultPackages() []PurchasePackage {
	return []PurchasePackage{
		{ID: "starter", HypeAmount: 500, Price: decimal.RequireFromString("5.00"), Bonus: 0, Description: "Starter pack"},
		{ID: "popular", HypeAmount: 1200, Price: decimal.RequireFromString("10.00"), Bonus: 100, Description: "Most popular"},
		{ID: "pro", HypeAmount: 2600, Price: decimal.RequireFromString("20.00"), Bonus: 400, Description: "Pro pack"},
		{ID: "elite", HypeAmount: 7000, Price: decimal.RequireFromString("50.00"), Bonus: 1500, Description: "Elite pack"},
	}
}
