package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payerrors "github.com/byronwade/thorbis-payments/pkg/errors"
	"github.com/byronwade/thorbis-payments/pkg/types"
)

type stubBankLinkAPI struct {
	link     *LinkToken
	access   *AccessToken
	err      error
	lastUser string
}

func (s *stubBankLinkAPI) CreateLinkToken(_ context.Context, _, userID string) (*LinkToken, error) {
	s.lastUser = userID
	return s.link, s.err
}

func (s *stubBankLinkAPI) ExchangePublicToken(_ context.Context, _ string) (*AccessToken, error) {
	return s.access, s.err
}

func bankLinkConfig() types.ProcessorConfig {
	return types.ProcessorConfig{
		CompanyID: "co_1",
		Kind:      types.KindBankLink,
		Credentials: map[string]string{
			"webhook_secret": "whsec_link",
		},
	}
}

func TestBankLinkTokenFlow(t *testing.T) {
	api := &stubBankLinkAPI{
		link:   &LinkToken{Token: "link-tok", Expiration: "2026-09-01T00:00:00Z"},
		access: &AccessToken{AccessToken: "access-tok", ItemID: "item_1"},
	}
	link := NewBankLink(bankLinkConfig(), api)

	token, err := link.CreateLinkToken(context.Background(), "user_9")
	require.NoError(t, err)
	assert.Equal(t, "link-tok", token.Token)
	assert.Equal(t, "user_9", api.lastUser)

	access, err := link.ExchangePublicToken(context.Background(), "public-tok")
	require.NoError(t, err)
	assert.Equal(t, "access-tok", access.AccessToken)
}

func TestBankLinkRefusesPayments(t *testing.T) {
	link := NewBankLink(bankLinkConfig(), &stubBankLinkAPI{})

	// Process and refund return a structured refusal, not an error: the
	// wrong rail was picked, and the caller should re-route.
	result, err := link.ProcessPayment(context.Background(), types.PaymentRequest{Amount: 5_000})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, types.PaymentStatusFailed, result.Status)
	assert.Equal(t, FailureCodeUnsupportedRail, result.FailureCode)

	refund, err := link.RefundPayment(context.Background(), types.RefundRequest{TransactionID: "tx_1"})
	require.NoError(t, err)
	assert.False(t, refund.Success)
	assert.Equal(t, FailureCodeUnsupportedRail, refund.FailureCode)
}

func TestBankLinkStatusUnsupported(t *testing.T) {
	link := NewBankLink(bankLinkConfig(), &stubBankLinkAPI{})

	_, err := link.GetPaymentStatus(context.Background(), "tx_1")
	assert.ErrorIs(t, err, payerrors.ErrUnsupportedOperation)
}

func TestBankLinkChannels(t *testing.T) {
	link := NewBankLink(bankLinkConfig(), &stubBankLinkAPI{})
	assert.Equal(t, []types.Channel{types.ChannelACH}, link.SupportedChannels())
}
