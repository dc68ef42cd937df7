// Package route chooses which configured processor serves a payment. The
// registry builds adapters from configs; the selector applies the routing
// policy over a company's active configs.
package route

import (
	"fmt"

	"github.com/byronwade/thorbis-payments/pkg/processor"
	"github.com/byronwade/thorbis-payments/pkg/signal"
	"github.com/byronwade/thorbis-payments/pkg/types"
)

// Clients bundles the remote API implementations the adapters are built
// over. Tests substitute fakes; production wires the HTTP clients.
type Clients struct {
	Card     processor.CardAPI
	BankLink processor.BankLinkAPI
	ACH      processor.ACHAPI
	Platform processor.PlatformAPI
}

// Factory builds an adapter from an active, credential-decrypted config.
type Factory func(cfg types.ProcessorConfig) (processor.Adapter, error)

// Registry maps each processor kind to its adapter factory. The set of
// kinds is closed; registering an unknown kind is an error.
type Registry struct {
	factories map[types.ProcessorKind]Factory
}

// NewRegistry creates a registry with the four rails pre-registered over the
// given clients. A nil client leaves its rail unregistered, which surfaces
// as a build error if a config for it is ever selected.
func NewRegistry(clients Clients, bus *signal.Bus, platformCeiling int64) *Registry {
	r := &Registry{factories: make(map[types.ProcessorKind]Factory)}

	if clients.Card != nil {
		r.factories[types.KindCardRail] = func(cfg types.ProcessorConfig) (processor.Adapter, error) {
			return processor.NewCardRail(cfg, clients.Card), nil
		}
	}
	if clients.BankLink != nil {
		r.factories[types.KindBankLink] = func(cfg types.ProcessorConfig) (processor.Adapter, error) {
			return processor.NewBankLink(cfg, clients.BankLink), nil
		}
	}
	if clients.ACH != nil {
		r.factories[types.KindACHRail] = func(cfg types.ProcessorConfig) (processor.Adapter, error) {
			return processor.NewACHRail(cfg, clients.ACH), nil
		}
	}
	if clients.Platform != nil {
		r.factories[types.KindPlatformBilling] = func(cfg types.ProcessorConfig) (processor.Adapter, error) {
			return processor.NewPlatformBilling(cfg, clients.Platform, platformCeiling, bus), nil
		}
	}
	return r
}

// Register replaces the factory for a kind. Used by tests and by callers
// bringing their own adapter implementation.
func (r *Registry) Register(kind types.ProcessorKind, factory Factory) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown processor kind: %s", kind)
	}
	r.factories[kind] = factory
	return nil
}

// Build constructs the adapter for cfg.
func (r *Registry) Build(cfg types.ProcessorConfig) (processor.Adapter, error) {
	factory, ok := r.factories[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for processor kind %s", cfg.Kind)
	}
	return factory(cfg)
}
