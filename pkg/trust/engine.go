package trust

import (
	"context"
	"errors"
	"fmt"

	payerrors "github.com/byronwade/thorbis-payments/pkg/errors"
	"github.com/byronwade/thorbis-payments/pkg/store"
	"github.com/byronwade/thorbis-payments/pkg/types"
)

// Limits are the per-processor amount limits gating applies. Zero values
// take the platform defaults.
type Limits struct {
	MaxPaymentAmount      int64
	RequiresApprovalAbove int64
}

func (l Limits) withDefaults() Limits {
	if l.MaxPaymentAmount <= 0 {
		l.MaxPaymentAmount = DefaultMaxPaymentAmount
	}
	if l.RequiresApprovalAbove <= 0 {
		l.RequiresApprovalAbove = DefaultRequiresApprovalAbove
	}
	return l
}

// LimitsFromConfig reads the limits off a processor config.
func LimitsFromConfig(cfg *types.ProcessorConfig) Limits {
	if cfg == nil {
		return Limits{}.withDefaults()
	}
	return Limits{
		MaxPaymentAmount:      cfg.MaxPaymentAmount,
		RequiresApprovalAbove: cfg.RequiresApprovalAbove,
	}.withDefaults()
}

// Evaluation is the gating verdict for one proposed payment. Allowed and
// RequiresApproval are independent: a payment can be under the ceiling and
// still need manual approval.
type Evaluation struct {
	Score            float64 `json:"score"`
	Allowed          bool    `json:"allowed"`
	RequiresApproval bool    `json:"requires_approval"`
	Ceiling          int64   `json:"ceiling"`
	Reason           string  `json:"reason,omitempty"`
}

// Engine evaluates proposed payments against stored trust records. Reads go
// through the optional cache first; evaluation never writes.
type Engine struct {
	store store.TrustStore
	cache Cache
}

// NewEngine creates an engine. cache may be nil.
func NewEngine(s store.TrustStore, cache Cache) *Engine {
	return &Engine{store: s, cache: cache}
}

// Evaluate gates a proposed payment amount for a company. Companies with no
// trust record are conservatively blocked, not silently allowed. Safe to
// call repeatedly; no side effects.
func (e *Engine) Evaluate(ctx context.Context, companyID string, amount int64, limits Limits) (Evaluation, error) {
	limits = limits.withDefaults()

	rec, err := e.lookup(ctx, companyID)
	if err != nil {
		if errors.Is(err, payerrors.ErrTrustRecordNotFound) {
			return Evaluation{
				Score:            NeutralScore,
				Allowed:          false,
				RequiresApproval: true,
				Ceiling:          0,
				Reason:           "No trust score found",
			}, nil
		}
		return Evaluation{}, payerrors.NewError("evaluate trust", "", err)
	}

	ceiling := Ceiling(rec.OverallScore, limits.MaxPaymentAmount)
	eval := Evaluation{
		Score:            rec.OverallScore,
		Allowed:          amount <= ceiling,
		RequiresApproval: amount > limits.RequiresApprovalAbove || rec.OverallScore < approvalScoreThreshold,
		Ceiling:          ceiling,
	}
	if !eval.Allowed {
		// Operators act on the stated ceiling without re-deriving the math.
		eval.Reason = fmt.Sprintf("Amount exceeds allowed ceiling of %s for trust score %.0f", FormatAmount(ceiling), rec.OverallScore)
	}
	return eval, nil
}

func (e *Engine) lookup(ctx context.Context, companyID string) (*types.TrustScoreRecord, error) {
	if e.cache != nil {
		if rec, ok := e.cache.Get(ctx, companyID); ok {
			return rec, nil
		}
	}
	rec, err := e.store.TrustScore(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(ctx, rec)
	}
	return rec, nil
}

// FormatAmount renders minor units as a human-readable dollar amount.
func FormatAmount(amount int64) string {
	return fmt.Sprintf("$%.2f", float64(amount)/100)
}
