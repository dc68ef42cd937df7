// Package trust computes the per-company trust score and gates payment
// amounts on it. The score is always derived from the stored metrics, never
// set directly; evaluation is a pure read and runs before any remote
// processor call.
package trust

import (
	"math"

	"github.com/byronwade/thorbis-payments/pkg/types"
)

// Default per-processor limits, applied when a config leaves them unset.
const (
	// DefaultMaxPaymentAmount is $1,000 in minor units.
	DefaultMaxPaymentAmount = 100_000
	// DefaultRequiresApprovalAbove is $500 in minor units.
	DefaultRequiresApprovalAbove = 50_000
	// LowScoreCeiling is the flat $100 ceiling for scores under 50.
	LowScoreCeiling = 10_000
	// NeutralScore stands in for companies with no trust record yet.
	NeutralScore = 50
	// approvalScoreThreshold: below this score every payment needs manual
	// approval regardless of amount.
	approvalScoreThreshold = 70
)

func successRate(r types.TrustScoreRecord) float64 {
	if r.TotalPaymentsCount == 0 {
		return 50
	}
	return float64(r.SuccessfulPaymentsCount) / float64(r.TotalPaymentsCount) * 100
}

func volumeFactor(r types.TrustScoreRecord) float64 {
	return math.Min(100, math.Log10(float64(r.TotalPaymentsVolume)/100+1)*20)
}

func ageFactor(r types.TrustScoreRecord) float64 {
	return math.Min(100, float64(r.AccountAgeDays)/30*10)
}

// Score computes the overall 0-100 trust score from a record's metrics. It
// is deterministic: identical inputs always produce identical scores.
func Score(r types.TrustScoreRecord) float64 {
	score := successRate(r)*0.4 + volumeFactor(r)*0.3 + ageFactor(r)*0.2
	if r.BusinessVerified {
		score += 10
	}
	if r.BankAccountVerified {
		score += 5
	}
	if r.IdentityVerified {
		score += 5
	}
	return math.Max(0, math.Min(100, score))
}

// Recompute refreshes the derived fields on r in place.
func Recompute(r *types.TrustScoreRecord) {
	r.OverallScore = Score(*r)
	if r.TotalPaymentsVolume > 0 {
		r.RefundRate = float64(r.RefundedAmount) / float64(r.TotalPaymentsVolume) * 100
	} else {
		r.RefundRate = 0
	}
}

// Ceiling returns the maximum allowed payment amount for a score, as a step
// function of the configured per-processor maximum. It is non-decreasing in
// score.
func Ceiling(score float64, maxPaymentAmount int64) int64 {
	switch {
	case score >= 90:
		return maxPaymentAmount
	case score >= 70:
		return maxPaymentAmount / 2
	case score >= 50:
		return maxPaymentAmount / 4
	default:
		return LowScoreCeiling
	}
}
