package domain

import "time"

// Plan is the raw subscription flag owned by the billing collaborator.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
	PlanVIP  Plan = "vip"
)

// ViewTier refines the effective plan for UI gating: pro splits into pro
// vs expiring near the end of the period, and expired (was paid, lapsed)
// stays distinct from plain free.
type ViewTier string

const (
	TierFree     ViewTier = "free"
	TierPro      ViewTier = "pro"
	TierExpiring ViewTier = "expiring"
	TierExpired  ViewTier = "expired"
)

// expiringWindowDays is the tail of a paid period rendered as "expiring".
const expiringWindowDays = 7

// Entitlement is the normalized subscription status derived from the raw
// plan fields. Pure data; see ResolveEntitlement.
type Entitlement struct {
	EffectivePlan Plan     `json:"effectivePlan"`
	ViewTier      ViewTier `json:"viewTier"`
	IsPro         bool     `json:"isPro"`
	IsExpired     bool     `json:"isExpired"`
	DaysLeft      *int     `json:"daysLeft,omitempty"`
}

// ResolveEntitlement normalizes a raw plan and optional expiry at a point
// in time. A nil expiry means the raw plan is trusted as-is; a past expiry
// collapses any plan to free. Unknown plan values resolve to free rather
// than pro, so malformed billing data can never widen access.
func ResolveEntitlement(raw Plan, expiresAt *time.Time, now time.Time) Entitlement {
	plan := normalizePlan(raw)

	if expiresAt == nil {
		return Entitlement{
			EffectivePlan: plan,
			ViewTier:      tierFor(plan, nil, false),
			IsPro:         isPaid(plan),
		}
	}

	if !now.Before(*expiresAt) {
		wasPaid := isPaid(plan)
		return Entitlement{
			EffectivePlan: PlanFree,
			ViewTier:      tierFor(PlanFree, nil, wasPaid),
			IsExpired:     wasPaid,
		}
	}

	days := daysUntil(now, *expiresAt)
	return Entitlement{
		EffectivePlan: plan,
		ViewTier:      tierFor(plan, &days, false),
		IsPro:         isPaid(plan),
		DaysLeft:      &days,
	}
}

func normalizePlan(raw Plan) Plan {
	switch raw {
	case PlanPro, PlanVIP:
		return raw
	default:
		return PlanFree
	}
}

func isPaid(p Plan) bool {
	return p == PlanPro || p == PlanVIP
}

func tierFor(plan Plan, daysLeft *int, wasPaid bool) ViewTier {
	if isPaid(plan) {
		if daysLeft != nil && *daysLeft > 0 && *daysLeft <= expiringWindowDays {
			return TierExpiring
		}
		return TierPro
	}
	if wasPaid {
		return TierExpired
	}
	return TierFree
}

// daysUntil rounds up: any partial day still counts as a remaining day.
func daysUntil(now, expiry time.Time) int {
	d := expiry.Sub(now)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}
