package route

import (
	"context"

	"github.com/byronwade/thorbis-payments/pkg/credentials"
	payerrors "github.com/byronwade/thorbis-payments/pkg/errors"
	"github.com/byronwade/thorbis-payments/pkg/processor"
	"github.com/byronwade/thorbis-payments/pkg/store"
	"github.com/byronwade/thorbis-payments/pkg/types"
)

// HighValueThreshold is the amount above which payments route to the card
// rail when one is configured: $10,000 in minor units. High-value payments
// are steered away from limited-capacity rails.
const HighValueThreshold = 1_000_000

// SelectionInput carries the request attributes the routing policy reads.
type SelectionInput struct {
	Amount  int64
	Channel types.Channel
	// ForcedKind pins selection to one rail when a matching active config
	// exists. Forcing a kind that is not configured is not an error; it
	// degrades to automatic selection.
	ForcedKind types.ProcessorKind
}

// Selector applies the routing policy over a company's active processor
// configs and constructs the chosen adapter. Selection is a pure read:
// any number of callers may select concurrently.
type Selector struct {
	configs   store.ConfigStore
	bank      store.BankAccounts
	decryptor credentials.Decryptor
	registry  *Registry
}

// NewSelector creates a selector over the given collaborators.
func NewSelector(configs store.ConfigStore, bank store.BankAccounts, decryptor credentials.Decryptor, registry *Registry) *Selector {
	return &Selector{configs: configs, bank: bank, decryptor: decryptor, registry: registry}
}

// Select chooses the adapter for one payment. The rules run in fixed
// priority order, first match wins:
//
//  1. no active bank account         -> ErrNoBankAccount
//  2. no active configs              -> ErrNotConfigured
//  3. forced kind, if configured
//  4. amount over $10,000 -> card rail, if configured
//  5. card-present / tap-to-pay      -> card rail, if configured
//  6. ach channel -> bank link, else ACH rail
//  7. newest active config that supports the channel
func (s *Selector) Select(ctx context.Context, companyID string, in SelectionInput) (processor.Adapter, *types.ProcessorConfig, error) {
	hasBank, err := s.bank.HasActiveBankAccount(ctx, companyID)
	if err != nil {
		return nil, nil, payerrors.NewError("select", "", err)
	}
	if !hasBank {
		// Payouts have nowhere to land; no processor may be returned
		// regardless of configuration.
		return nil, nil, payerrors.ErrNoBankAccount
	}

	configs, err := s.configs.ActiveConfigs(ctx, companyID)
	if err != nil {
		return nil, nil, payerrors.NewError("select", "", err)
	}
	if len(configs) == 0 {
		return nil, nil, payerrors.ErrNotConfigured
	}

	cfg := pick(configs, in)
	return s.build(ctx, cfg)
}

// ForKind returns the adapter for one specific configured rail. Refunds,
// status reads, and webhook handling use this to reach the processor that
// owns an existing transaction.
func (s *Selector) ForKind(ctx context.Context, companyID string, kind types.ProcessorKind) (processor.Adapter, *types.ProcessorConfig, error) {
	cfg, err := s.configs.Config(ctx, companyID, kind)
	if err != nil {
		return nil, nil, err
	}
	return s.build(ctx, *cfg)
}

// pick runs the priority rules over the active configs, which arrive newest
// first. It always returns one of them.
func pick(configs []types.ProcessorConfig, in SelectionInput) types.ProcessorConfig {
	byKind := make(map[types.ProcessorKind]types.ProcessorConfig, len(configs))
	for _, cfg := range configs {
		if _, ok := byKind[cfg.Kind]; !ok {
			byKind[cfg.Kind] = cfg
		}
	}

	if in.ForcedKind != "" {
		if cfg, ok := byKind[in.ForcedKind]; ok {
			return cfg
		}
		// Fall through to automatic rules.
	}

	if in.Amount > HighValueThreshold {
		if cfg, ok := byKind[types.KindCardRail]; ok {
			return cfg
		}
	}

	if in.Channel == types.ChannelCardPresent || in.Channel == types.ChannelTapToPay {
		if cfg, ok := byKind[types.KindCardRail]; ok {
			return cfg
		}
	}

	if in.Channel == types.ChannelACH {
		if cfg, ok := byKind[types.KindBankLink]; ok {
			return cfg
		}
		if cfg, ok := byKind[types.KindACHRail]; ok {
			return cfg
		}
	}

	// Default: most recently configured rail that can serve the channel.
	// If none can, degrade to the newest config rather than failing.
	if in.Channel != "" {
		for _, cfg := range configs {
			if processor.SupportsChannel(cfg.Kind, in.Channel) {
				return cfg
			}
		}
	}
	return configs[0]
}

// build decrypts the config's credential bundle and constructs the adapter.
func (s *Selector) build(ctx context.Context, cfg types.ProcessorConfig) (processor.Adapter, *types.ProcessorConfig, error) {
	if cfg.Credentials == nil && len(cfg.EncryptedCredentials) > 0 && s.decryptor != nil {
		bundle, err := s.decryptor.Decrypt(ctx, cfg.EncryptedCredentials)
		if err != nil {
			return nil, nil, payerrors.NewError("decrypt credentials", string(cfg.Kind), err)
		}
		cfg.Credentials = bundle
	}

	adapter, err := s.registry.Build(cfg)
	if err != nil {
		return nil, nil, payerrors.NewError("build adapter", string(cfg.Kind), err)
	}
	return adapter, &cfg, nil
}
