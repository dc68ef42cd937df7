package store

import (
	"context"
	"sort"
	"sync"

	"github.com/byronwade/thorbis-payments/pkg/errors"
	"github.com/byronwade/thorbis-payments/pkg/types"
)

// Memory is an in-process Store with the same compare-and-swap semantics as
// the DynamoDB implementation. It backs unit tests and local development.
type Memory struct {
	mu           sync.RWMutex
	configs      map[string][]types.ProcessorConfig // by company
	trust        map[string]types.TrustScoreRecord  // by company
	bankAccounts map[string]bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		configs:      make(map[string][]types.ProcessorConfig),
		trust:        make(map[string]types.TrustScoreRecord),
		bankAccounts: make(map[string]bool),
	}
}

// PutConfig adds or replaces the config for (company, kind).
func (m *Memory) PutConfig(cfg types.ProcessorConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.configs[cfg.CompanyID]
	for i, existing := range list {
		if existing.Kind == cfg.Kind {
			list[i] = cfg
			m.configs[cfg.CompanyID] = list
			return
		}
	}
	m.configs[cfg.CompanyID] = append(list, cfg)
}

// SetBankAccount records whether the company has an active bank account.
func (m *Memory) SetBankAccount(companyID string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bankAccounts[companyID] = active
}

// SeedTrustScore installs a trust record directly, bypassing the CAS check.
func (m *Memory) SeedTrustScore(rec types.TrustScoreRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trust[rec.CompanyID] = rec
}

// ActiveConfigs implements ConfigStore.
func (m *Memory) ActiveConfigs(_ context.Context, companyID string) ([]types.ProcessorConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.ProcessorConfig
	for _, cfg := range m.configs[companyID] {
		if cfg.Active {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Config implements ConfigStore.
func (m *Memory) Config(_ context.Context, companyID string, kind types.ProcessorKind) (*types.ProcessorConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, cfg := range m.configs[companyID] {
		if cfg.Kind == kind && cfg.Active {
			out := cfg
			return &out, nil
		}
	}
	return nil, errors.ErrConfigNotFound
}

// TrustScore implements TrustStore.
func (m *Memory) TrustScore(_ context.Context, companyID string) (*types.TrustScoreRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.trust[companyID]
	if !ok {
		return nil, errors.ErrTrustRecordNotFound
	}
	out := rec
	return &out, nil
}

// SaveTrustScore implements TrustStore with version CAS semantics.
func (m *Memory) SaveTrustScore(_ context.Context, rec *types.TrustScoreRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.trust[rec.CompanyID]
	if exists {
		if current.Version != rec.Version {
			return errors.ErrVersionConflict
		}
	} else if rec.Version != 0 {
		return errors.ErrVersionConflict
	}

	saved := *rec
	saved.Version = rec.Version + 1
	m.trust[rec.CompanyID] = saved
	rec.Version = saved.Version
	return nil
}

// HasActiveBankAccount implements BankAccounts.
func (m *Memory) HasActiveBankAccount(_ context.Context, companyID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bankAccounts[companyID], nil
}
