// Package store defines the narrow persistence interfaces the engine reads
// processor configuration and trust metrics through, plus the DynamoDB and
// in-memory implementations. The engine never issues raw storage queries
// itself.
package store

import (
	"context"

	"github.com/byronwade/thorbis-payments/pkg/types"
)

// ConfigStore reads processor configuration rows. Implementations return
// only active configs, at most one per (company, kind).
type ConfigStore interface {
	// ActiveConfigs returns every active config for the company, newest
	// first by creation time.
	ActiveConfigs(ctx context.Context, companyID string) ([]types.ProcessorConfig, error)

	// Config returns the active config for one (company, kind) pair, or
	// errors.ErrConfigNotFound.
	Config(ctx context.Context, companyID string, kind types.ProcessorKind) (*types.ProcessorConfig, error)
}

// TrustStore reads and writes per-company trust score records.
type TrustStore interface {
	// TrustScore returns the company's record, or errors.ErrTrustRecordNotFound.
	TrustScore(ctx context.Context, companyID string) (*types.TrustScoreRecord, error)

	// SaveTrustScore persists rec with a compare-and-swap on rec.Version:
	// the write succeeds only if the stored version still matches, and the
	// persisted record carries rec.Version+1. A lost race returns
	// errors.ErrVersionConflict; callers reload and retry.
	SaveTrustScore(ctx context.Context, rec *types.TrustScoreRecord) error
}

// BankAccounts answers the payout pre-condition for processor selection.
type BankAccounts interface {
	HasActiveBankAccount(ctx context.Context, companyID string) (bool, error)
}

// Store is the full persistence collaborator surface.
type Store interface {
	ConfigStore
	TrustStore
	BankAccounts
}
