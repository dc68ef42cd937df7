package processor

import (
	"context"

	"github.com/google/uuid"

	payerrors "github.com/byronwade/thorbis-payments/pkg/errors"
	"github.com/byronwade/thorbis-payments/pkg/types"
	"github.com/byronwade/thorbis-payments/pkg/webhook"
)

// Card rail result codes at the wire boundary.
const (
	cardResultAuthorised      = "Authorised"
	cardResultReceived        = "Received"
	cardResultRefused         = "Refused"
	cardResultError           = "Error"
	cardResultCancelled       = "Cancelled"
	cardResultRedirectShopper = "RedirectShopper"
	cardResultChallenge       = "ChallengeShopper"
	cardResultIdentify        = "IdentifyShopper"
)

// CardAuthorizeRequest is the card rail's wire request. Amounts stay in
// minor units throughout this rail.
type CardAuthorizeRequest struct {
	MerchantAccount string            `json:"merchantAccount"`
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	Reference       string            `json:"reference"`
	PaymentMethodID string            `json:"paymentMethodId,omitempty"`
	Channel         string            `json:"channel,omitempty"`
	ReturnURL       string            `json:"returnUrl,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// CardAuthorizeResponse is the card rail's wire response.
type CardAuthorizeResponse struct {
	PSPReference   string            `json:"pspReference"`
	ResultCode     string            `json:"resultCode"`
	RefusalReason  string            `json:"refusalReason,omitempty"`
	RefusalCode    string            `json:"refusalReasonCode,omitempty"`
	Action         string            `json:"action,omitempty"` // redirect / challenge continuation
	AdditionalData map[string]string `json:"additionalData,omitempty"`
}

// CardRefundRequest is the card rail's refund wire request. Amount zero
// refunds the original amount in full.
type CardRefundRequest struct {
	MerchantAccount string `json:"merchantAccount"`
	PSPReference    string `json:"pspReference"`
	Amount          int64  `json:"amount,omitempty"`
	Reference       string `json:"reference"`
	Reason          string `json:"reason,omitempty"`
}

// CardRefundResponse is the card rail's refund wire response.
type CardRefundResponse struct {
	PSPReference  string `json:"pspReference"`
	Status        string `json:"status"` // "received" on accepted refunds
	RefusalReason string `json:"refusalReason,omitempty"`
	RefusalCode   string `json:"refusalReasonCode,omitempty"`
}

// CardPaymentDetails is the card rail's status wire response.
type CardPaymentDetails struct {
	PSPReference   string            `json:"pspReference"`
	ResultCode     string            `json:"resultCode"`
	Amount         int64             `json:"amount"`
	AdditionalData map[string]string `json:"additionalData,omitempty"`
}

// CardAPI is the remote card rail surface the adapter depends on. The
// concrete HTTP client is a collaborator; tests substitute a fake.
type CardAPI interface {
	Authorize(ctx context.Context, req CardAuthorizeRequest) (*CardAuthorizeResponse, error)
	Refund(ctx context.Context, req CardRefundRequest) (*CardRefundResponse, error)
	PaymentDetails(ctx context.Context, pspReference string) (*CardPaymentDetails, error)
}

// CardRail processes synchronous card authorizations, including redirect and
// challenge continuations for 3-D Secure flows.
type CardRail struct {
	api             CardAPI
	merchantAccount string
	webhookSecret   string
	defaultCurrency string
}

// NewCardRail constructs the card rail adapter from a decrypted config.
func NewCardRail(cfg types.ProcessorConfig, api CardAPI) *CardRail {
	return &CardRail{
		api:             api,
		merchantAccount: cfg.Credentials["merchant_account"],
		webhookSecret:   cfg.Credentials[webhookSecretKey],
		defaultCurrency: "USD",
	}
}

// Kind implements Adapter.
func (c *CardRail) Kind() types.ProcessorKind { return types.KindCardRail }

// ProcessPayment implements Adapter.
func (c *CardRail) ProcessPayment(ctx context.Context, req types.PaymentRequest) (types.PaymentResult, error) {
	if req.Amount <= 0 {
		return types.PaymentResult{}, payerrors.ErrInvalidAmount
	}

	currency := req.Currency
	if currency == "" {
		currency = c.defaultCurrency
	}
	reference := req.InvoiceID
	if reference == "" {
		reference = uuid.NewString()
	}

	resp, err := c.api.Authorize(ctx, CardAuthorizeRequest{
		MerchantAccount: c.merchantAccount,
		Amount:          req.Amount,
		Currency:        currency,
		Reference:       reference,
		PaymentMethodID: req.PaymentMethodID,
		Channel:         string(req.Channel),
		Metadata:        req.Metadata,
	})
	if err != nil {
		return types.PaymentResult{}, payerrors.Unavailable(string(types.KindCardRail), err)
	}

	result := types.PaymentResult{
		TransactionID: resp.PSPReference,
		Processor:     types.KindCardRail,
		Metadata:      resp.AdditionalData,
	}

	switch resp.ResultCode {
	case cardResultAuthorised, cardResultReceived:
		result.Success = true
		result.Status = types.PaymentStatusSucceeded
	case cardResultRedirectShopper, cardResultChallenge, cardResultIdentify:
		result.Status = types.PaymentStatusRequiresAction
		result.ClientToken = resp.Action
	default:
		result.Status = types.PaymentStatusFailed
		result.FailureCode = resp.RefusalCode
		result.FailureMessage = resp.RefusalReason
		if result.FailureCode == "" {
			result.FailureCode = "refused"
		}
	}
	return result, nil
}

// RefundPayment implements Adapter.
func (c *CardRail) RefundPayment(ctx context.Context, req types.RefundRequest) (types.RefundResult, error) {
	resp, err := c.api.Refund(ctx, CardRefundRequest{
		MerchantAccount: c.merchantAccount,
		PSPReference:    req.TransactionID,
		Amount:          req.Amount,
		Reference:       uuid.NewString(),
		Reason:          req.Reason,
	})
	if err != nil {
		return types.RefundResult{}, payerrors.Unavailable(string(types.KindCardRail), err)
	}

	result := types.RefundResult{
		RefundID:  resp.PSPReference,
		Processor: types.KindCardRail,
	}
	if resp.Status == "received" {
		// Card refunds settle asynchronously; received means accepted.
		result.Success = true
		result.Status = types.RefundStatusProcessing
	} else {
		result.Status = types.RefundStatusFailed
		result.FailureCode = resp.RefusalCode
		result.FailureMessage = resp.RefusalReason
		if result.FailureCode == "" {
			result.FailureCode = "refused"
		}
	}
	return result, nil
}

// GetPaymentStatus implements Adapter.
func (c *CardRail) GetPaymentStatus(ctx context.Context, transactionID string) (types.PaymentStatusInfo, error) {
	details, err := c.api.PaymentDetails(ctx, transactionID)
	if err != nil {
		return types.PaymentStatusInfo{}, payerrors.Unavailable(string(types.KindCardRail), err)
	}

	info := types.PaymentStatusInfo{
		Amount:   details.Amount,
		Metadata: details.AdditionalData,
	}
	switch details.ResultCode {
	case cardResultAuthorised, cardResultReceived:
		info.Status = types.PaymentStatusSucceeded
	case cardResultRedirectShopper, cardResultChallenge, cardResultIdentify:
		info.Status = types.PaymentStatusRequiresAction
	case cardResultRefused, cardResultError, cardResultCancelled:
		info.Status = types.PaymentStatusFailed
	default:
		info.Status = types.PaymentStatusProcessing
	}
	return info, nil
}

// VerifyWebhook implements Adapter.
func (c *CardRail) VerifyWebhook(payload []byte, signature string) bool {
	return webhook.Verify([]byte(c.webhookSecret), payload, signature)
}

// SupportedChannels implements Adapter.
func (c *CardRail) SupportedChannels() []types.Channel {
	return ChannelsFor(types.KindCardRail)
}
