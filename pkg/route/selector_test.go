package route

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byronwade/thorbis-payments/pkg/credentials"
	payerrors "github.com/byronwade/thorbis-payments/pkg/errors"
	"github.com/byronwade/thorbis-payments/pkg/processor"
	"github.com/byronwade/thorbis-payments/pkg/store"
	"github.com/byronwade/thorbis-payments/pkg/types"
)

// fake remote APIs, never called during selection
type fakeCardAPI struct{ processor.CardAPI }
type fakeBankLinkAPI struct{ processor.BankLinkAPI }
type fakeACHAPI struct{ processor.ACHAPI }
type fakePlatformAPI struct{ processor.PlatformAPI }

func testRegistry() *Registry {
	return NewRegistry(Clients{
		Card:     fakeCardAPI{},
		BankLink: fakeBankLinkAPI{},
		ACH:      fakeACHAPI{},
		Platform: fakePlatformAPI{},
	}, nil, 0)
}

func testConfig(company string, kind types.ProcessorKind, age time.Duration) types.ProcessorConfig {
	return types.ProcessorConfig{
		CompanyID:   company,
		Kind:        kind,
		Active:      true,
		Credentials: map[string]string{},
		CreatedAt:   time.Now().Add(-age),
	}
}

func testSelector(t *testing.T, configured ...types.ProcessorKind) (*Selector, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	mem.SetBankAccount("co_1", true)
	for i, kind := range configured {
		// Later entries in configured are older.
		mem.PutConfig(testConfig("co_1", kind, time.Duration(i)*time.Hour))
	}
	return NewSelector(mem, mem, credentials.Static{}, testRegistry()), mem
}

func TestSelectNoBankAccount(t *testing.T) {
	mem := store.NewMemory()
	mem.PutConfig(testConfig("co_1", types.KindCardRail, 0))
	sel := NewSelector(mem, mem, credentials.Static{}, testRegistry())

	_, _, err := sel.Select(context.Background(), "co_1", SelectionInput{Amount: 1_000})
	assert.ErrorIs(t, err, payerrors.ErrNoBankAccount)
}

func TestSelectNotConfigured(t *testing.T) {
	mem := store.NewMemory()
	mem.SetBankAccount("co_1", true)
	sel := NewSelector(mem, mem, credentials.Static{}, testRegistry())

	_, _, err := sel.Select(context.Background(), "co_1", SelectionInput{Amount: 1_000})
	assert.ErrorIs(t, err, payerrors.ErrNotConfigured)
}

func TestSelectForcedKind(t *testing.T) {
	sel, _ := testSelector(t, types.KindCardRail, types.KindACHRail)

	adapter, cfg, err := sel.Select(context.Background(), "co_1", SelectionInput{
		Amount:     1_000,
		Channel:    types.ChannelOnline,
		ForcedKind: types.KindACHRail,
	})
	require.NoError(t, err)
	assert.Equal(t, types.KindACHRail, adapter.Kind())
	assert.Equal(t, types.KindACHRail, cfg.Kind)
}

func TestSelectForcedKindDegrades(t *testing.T) {
	sel, _ := testSelector(t, types.KindCardRail)

	// Forcing a rail that is not configured falls back to the automatic
	// rules instead of failing.
	adapter, _, err := sel.Select(context.Background(), "co_1", SelectionInput{
		Amount:     1_000,
		Channel:    types.ChannelOnline,
		ForcedKind: types.KindPlatformBilling,
	})
	require.NoError(t, err)
	assert.Equal(t, types.KindCardRail, adapter.Kind())
}

func TestSelectHighValueRoutesToCard(t *testing.T) {
	sel, _ := testSelector(t, types.KindACHRail, types.KindCardRail)

	// $12,000 online payment: over the high-value threshold, so the card
	// rail wins even though the ACH config is newer.
	adapter, _, err := sel.Select(context.Background(), "co_1", SelectionInput{
		Amount:  1_200_000,
		Channel: types.ChannelOnline,
	})
	require.NoError(t, err)
	assert.Equal(t, types.KindCardRail, adapter.Kind())
}

func TestSelectHighValueWithoutCardFallsThrough(t *testing.T) {
	sel, _ := testSelector(t, types.KindACHRail)

	adapter, _, err := sel.Select(context.Background(), "co_1", SelectionInput{
		Amount:  1_200_000,
		Channel: types.ChannelACH,
	})
	require.NoError(t, err)
	assert.Equal(t, types.KindACHRail, adapter.Kind())
}

func TestSelectCardPresentChannels(t *testing.T) {
	for _, channel := range []types.Channel{types.ChannelCardPresent, types.ChannelTapToPay} {
		sel, _ := testSelector(t, types.KindACHRail, types.KindCardRail)

		adapter, _, err := sel.Select(context.Background(), "co_1", SelectionInput{
			Amount:  1_000,
			Channel: channel,
		})
		require.NoError(t, err)
		assert.Equal(t, types.KindCardRail, adapter.Kind(), "channel %s", channel)
	}
}

func TestSelectACHPrefersBankLink(t *testing.T) {
	sel, _ := testSelector(t, types.KindACHRail, types.KindBankLink)

	adapter, _, err := sel.Select(context.Background(), "co_1", SelectionInput{
		Amount:  1_000,
		Channel: types.ChannelACH,
	})
	require.NoError(t, err)
	assert.Equal(t, types.KindBankLink, adapter.Kind())
}

func TestSelectACHFallsBackToACHRail(t *testing.T) {
	sel, _ := testSelector(t, types.KindCardRail, types.KindACHRail)

	adapter, _, err := sel.Select(context.Background(), "co_1", SelectionInput{
		Amount:  1_000,
		Channel: types.ChannelACH,
	})
	require.NoError(t, err)
	assert.Equal(t, types.KindACHRail, adapter.Kind())
}

func TestSelectDefaultPrefersNewestSupportingChannel(t *testing.T) {
	// Platform billing config is newest; card rail older. Both support
	// online, so the newest wins.
	sel, _ := testSelector(t, types.KindPlatformBilling, types.KindCardRail)

	adapter, _, err := sel.Select(context.Background(), "co_1", SelectionInput{
		Amount:  1_000,
		Channel: types.ChannelOnline,
	})
	require.NoError(t, err)
	assert.Equal(t, types.KindPlatformBilling, adapter.Kind())
}

func TestSelectDefaultSkipsUnsupportedChannel(t *testing.T) {
	// Newest config cannot serve check; the ACH rail can.
	sel, _ := testSelector(t, types.KindCardRail, types.KindACHRail)

	adapter, _, err := sel.Select(context.Background(), "co_1", SelectionInput{
		Amount:  1_000,
		Channel: types.ChannelCheck,
	})
	require.NoError(t, err)
	assert.Equal(t, types.KindACHRail, adapter.Kind())
}

func TestSelectDegradesWhenNoConfigSupportsChannel(t *testing.T) {
	sel, _ := testSelector(t, types.KindCardRail)

	// Nothing serves wire; degrade to the newest config rather than
	// refusing the payment outright.
	adapter, _, err := sel.Select(context.Background(), "co_1", SelectionInput{
		Amount:  1_000,
		Channel: types.ChannelWire,
	})
	require.NoError(t, err)
	assert.Equal(t, types.KindCardRail, adapter.Kind())
}

func TestSelectIgnoresInactiveConfigs(t *testing.T) {
	mem := store.NewMemory()
	mem.SetBankAccount("co_1", true)
	inactive := testConfig("co_1", types.KindCardRail, 0)
	inactive.Active = false
	mem.PutConfig(inactive)
	mem.PutConfig(testConfig("co_1", types.KindACHRail, time.Hour))
	sel := NewSelector(mem, mem, credentials.Static{}, testRegistry())

	adapter, _, err := sel.Select(context.Background(), "co_1", SelectionInput{
		Amount:  1_000,
		Channel: types.ChannelOnline,
	})
	require.NoError(t, err)
	assert.Equal(t, types.KindACHRail, adapter.Kind())
}

func TestForKind(t *testing.T) {
	sel, _ := testSelector(t, types.KindCardRail, types.KindACHRail)

	adapter, cfg, err := sel.ForKind(context.Background(), "co_1", types.KindACHRail)
	require.NoError(t, err)
	assert.Equal(t, types.KindACHRail, adapter.Kind())
	assert.Equal(t, types.KindACHRail, cfg.Kind)

	_, _, err = sel.ForKind(context.Background(), "co_1", types.KindPlatformBilling)
	assert.ErrorIs(t, err, payerrors.ErrConfigNotFound)
}

func TestSelectDecryptsCredentials(t *testing.T) {
	mem := store.NewMemory()
	mem.SetBankAccount("co_1", true)
	cfg := testConfig("co_1", types.KindCardRail, 0)
	cfg.Credentials = nil
	cfg.EncryptedCredentials = []byte("ciphertext")
	mem.PutConfig(cfg)

	decryptor := credentials.Static{"merchant_account": "ma_123"}
	sel := NewSelector(mem, mem, decryptor, testRegistry())

	_, selected, err := sel.Select(context.Background(), "co_1", SelectionInput{
		Amount:  1_000,
		Channel: types.ChannelOnline,
	})
	require.NoError(t, err)
	assert.Equal(t, "ma_123", selected.Credentials["merchant_account"])
}
