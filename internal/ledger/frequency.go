package ledger

import (
	"time"

	"hypeledger/internal/catalog"
	"hypeledger/internal/model"
)

// Claims is one user's claim state, keyed by kind and reference id.
type Claims map[string]*model.Claim

func claimKey(kind, refID string) string {
	return kind + ":" + refID
}

// NewClaims indexes the claims loaded for a user.
func NewClaims(list []*model.Claim) Claims {
	c := make(Claims, len(list))
	for _, cl := range list {
		c[claimKey(cl.Kind, cl.RefID)] = cl
	}
	return c
}

func (c Claims) Lookup(kind, refID string) *model.Claim {
	return c[claimKey(kind, refID)]
}

// FrequencyTracker enforces once/daily/weekly earning limits and spending
// cooldowns. Windows are calendar windows in UTC: a daily rule resets at
// 00:00 UTC and a weekly rule at Monday 00:00 UTC.
type FrequencyTracker struct{}

// HasClaimed reports whether ruleID is exhausted for the current window.
func (FrequencyTracker) HasClaimed(claims Claims, ruleID string, freq catalog.Frequency, now time.Time) bool {
	claim := claims.Lookup(model.ClaimKindEarn, ruleID)
	if claim == nil || claim.Count == 0 {
		return false
	}
	last := claim.LastAt.UTC()
	switch freq {
	case catalog.FrequencyOnce:
		return true
	case catalog.FrequencyDaily:
		return !last.Before(StartOfDay(now))
	case catalog.FrequencyWeekly:
		return !last.Before(StartOfWeek(now))
	default:
		return false
	}
}

// RecordClaim returns the updated claim for ruleID. claims is not modified;
// the caller stages the result in the same batch as the balance change.
func (t FrequencyTracker) RecordClaim(claims Claims, userID, ruleID string, now time.Time) *model.Claim {
	return t.record(claims, userID, model.ClaimKindEarn, ruleID, now)
}

// RecordSpend is RecordClaim for spending options.
func (t FrequencyTracker) RecordSpend(claims Claims, userID, optionID string, now time.Time) *model.Claim {
	return t.record(claims, userID, model.ClaimKindSpend, optionID, now)
}

// CooldownRemaining returns how long the user must wait before spending on
// optionID again; zero means allowed.
func (FrequencyTracker) CooldownRemaining(claims Claims, optionID string, cooldown time.Duration, now time.Time) time.Duration {
	if cooldown <= 0 {
		return 0
	}
	claim := claims.Lookup(model.ClaimKindSpend, optionID)
	if claim == nil {
		return 0
	}
	remaining := claim.LastAt.Add(cooldown).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (FrequencyTracker) record(claims Claims, userID, kind, refID string, now time.Time) *model.Claim {
	next := &model.Claim{UserID: userID, Kind: kind, RefID: refID}
	if prev := claims.Lookup(kind, refID); prev != nil {
		c := *prev
		next = &c
	}
	next.LastAt = now.UTC()
	next.Count++
	return next
}

// StartOfDay returns 00:00 UTC of t's UTC day.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfWeek returns Monday 00:00 UTC of t's UTC week.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}
