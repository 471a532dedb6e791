package app

import "growth-core-service/internal/domain"

// TreatmentAccess is what the user may do with the curriculum.
type TreatmentAccess string

const (
	// AccessFull allows advancing through days.
	AccessFull TreatmentAccess = "full"
	// AccessFrozenCurrent keeps a lapsed user's current day visible
	// read-only; their history is never erased.
	AccessFrozenCurrent TreatmentAccess = "frozen_current"
	// AccessArchiveOnly shows preview/archive content to users with no
	// progress of their own.
	AccessArchiveOnly TreatmentAccess = "archive_only"
)

// PaywallReason drives distinct upsell copy upstream; the two reasons must
// stay separate.
type PaywallReason string

const (
	ReasonStartTreatment    PaywallReason = "start_treatment"
	ReasonContinueTreatment PaywallReason = "continue_treatment"
)

// AccessDecision is the resolved gate for one request.
type AccessDecision struct {
	Access        TreatmentAccess `json:"access"`
	PaywallNeeded bool            `json:"paywallNeeded"`
	PaywallReason PaywallReason   `json:"paywallReason,omitempty"`
}

// DecideAccess is the (viewTier × hasProgress) decision table. Expiring
// users keep full access; non-entitled users keep frozen read-only access
// to progress they already made.
func DecideAccess(tier domain.ViewTier, hasProgress bool) AccessDecision {
	if tier == domain.TierPro || tier == domain.TierExpiring {
		return AccessDecision{Access: AccessFull}
	}

	decision := AccessDecision{PaywallNeeded: true}
	if hasProgress {
		decision.Access = AccessFrozenCurrent
		decision.PaywallReason = ReasonContinueTreatment
	} else {
		decision.Access = AccessArchiveOnly
		decision.PaywallReason = ReasonStartTreatment
	}
	return decision
}

// Mode tells the client which surface to present.
type Mode string

const (
	ModeIdle               Mode = "idle"
	ModeBaselineAssessment Mode = "baseline_assessment"
	ModeChoosePath         Mode = "choose_path"
	ModeTreating           Mode = "treating"
)

// DeriveMode resolves the per-request mode. The order is load-bearing:
// real progress always outranks a stale in-progress baseline session.
func DeriveMode(hasProgress bool, baseline *domain.AssessmentSession) Mode {
	switch {
	case hasProgress:
		return ModeTreating
	case baseline != nil && baseline.Status == domain.SessionInProgress:
		return ModeBaselineAssessment
	case baseline != nil && baseline.Status == domain.SessionCompleted:
		return ModeChoosePath
	default:
		return ModeIdle
	}
}
