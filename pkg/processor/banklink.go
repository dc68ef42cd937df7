package processor

import (
	"context"

	payerrors "github.com/byronwade/thorbis-payments/pkg/errors"
	"github.com/byronwade/thorbis-payments/pkg/types"
	"github.com/byronwade/thorbis-payments/pkg/webhook"
)

// LinkToken is a short-lived token the client uses to open the account
// linking flow.
type LinkToken struct {
	Token      string `json:"link_token"`
	Expiration string `json:"expiration"`
}

// AccessToken is the durable credential obtained by exchanging a public
// token after the user completes linking.
type AccessToken struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

// BankLinkAPI is the remote account-linking surface the adapter depends on.
type BankLinkAPI interface {
	CreateLinkToken(ctx context.Context, companyID, userID string) (*LinkToken, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*AccessToken, error)
}

// BankLink performs bank account linking token exchange only. It cannot move
// money: payments and refunds against linked accounts route through an
// ACH-capable rail, and process/refund here return a structured refusal so
// callers re-route instead of crashing.
type BankLink struct {
	api           BankLinkAPI
	companyID     string
	webhookSecret string
}

// NewBankLink constructs the bank-link adapter from a decrypted config.
func NewBankLink(cfg types.ProcessorConfig, api BankLinkAPI) *BankLink {
	return &BankLink{
		api:           api,
		companyID:     cfg.CompanyID,
		webhookSecret: cfg.Credentials[webhookSecretKey],
	}
}

// Kind implements Adapter.
func (b *BankLink) Kind() types.ProcessorKind { return types.KindBankLink }

// CreateLinkToken starts an account linking session for the given user.
func (b *BankLink) CreateLinkToken(ctx context.Context, userID string) (*LinkToken, error) {
	token, err := b.api.CreateLinkToken(ctx, b.companyID, userID)
	if err != nil {
		return nil, payerrors.Unavailable(string(types.KindBankLink), err)
	}
	return token, nil
}

// ExchangePublicToken swaps the client's public token for a durable access
// token after linking completes.
func (b *BankLink) ExchangePublicToken(ctx context.Context, publicToken string) (*AccessToken, error) {
	token, err := b.api.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, payerrors.Unavailable(string(types.KindBankLink), err)
	}
	return token, nil
}

// ProcessPayment implements Adapter. The refusal is structured, not an
// error: no remote attempt is made.
func (b *BankLink) ProcessPayment(_ context.Context, _ types.PaymentRequest) (types.PaymentResult, error) {
	return types.PaymentResult{
		Status:         types.PaymentStatusFailed,
		Processor:      types.KindBankLink,
		FailureCode:    FailureCodeUnsupportedRail,
		FailureMessage: "bank link performs account linking only; route this payment through an ACH-capable rail",
	}, nil
}

// RefundPayment implements Adapter.
func (b *BankLink) RefundPayment(_ context.Context, _ types.RefundRequest) (types.RefundResult, error) {
	return types.RefundResult{
		Status:         types.RefundStatusFailed,
		Processor:      types.KindBankLink,
		FailureCode:    FailureCodeUnsupportedRail,
		FailureMessage: "bank link performs account linking only; route this refund through an ACH-capable rail",
	}, nil
}

// GetPaymentStatus implements Adapter.
func (b *BankLink) GetPaymentStatus(_ context.Context, _ string) (types.PaymentStatusInfo, error) {
	return types.PaymentStatusInfo{}, payerrors.NewError("status", string(types.KindBankLink), payerrors.ErrUnsupportedOperation)
}

// VerifyWebhook implements Adapter.
func (b *BankLink) VerifyWebhook(payload []byte, signature string) bool {
	return webhook.Verify([]byte(b.webhookSecret), payload, signature)
}

// SupportedChannels implements Adapter.
func (b *BankLink) SupportedChannels() []types.Channel {
	return ChannelsFor(types.KindBankLink)
}
