package processor

import (
	"context"
	"math"

	"github.com/google/uuid"

	payerrors "github.com/byronwade/thorbis-payments/pkg/errors"
	"github.com/byronwade/thorbis-payments/pkg/types"
	"github.com/byronwade/thorbis-payments/pkg/webhook"
)

// The ACH rail speaks major currency units (dollars) on the wire. Conversion
// happens here and only here; minor units never leave the shared types.
func dollarsFromMinor(amount int64) float64 {
	return float64(amount) / 100
}

func minorFromDollars(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// ACHSubmitRequest is the ACH rail's wire request.
type ACHSubmitRequest struct {
	SourceID      string  `json:"source_id"`
	AmountDollars float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Description   string  `json:"description,omitempty"`
	Reference     string  `json:"reference"`
}

// ACHSubmitResponse is the ACH rail's wire response.
type ACHSubmitResponse struct {
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"` // "pending" on accepted submissions
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ACHRefundRequest is the ACH rail's refund wire request.
type ACHRefundRequest struct {
	PaymentID     string  `json:"payment_id"`
	AmountDollars float64 `json:"amount,omitempty"` // zero means full refund
	Reason        string  `json:"reason,omitempty"`
	Reference     string  `json:"reference"`
}

// ACHRefundResponse is the ACH rail's refund wire response.
type ACHRefundResponse struct {
	RefundID     string `json:"refund_id"`
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ACHStatusResponse is the ACH rail's status wire response.
type ACHStatusResponse struct {
	PaymentID     string            `json:"payment_id"`
	Status        string            `json:"status"`
	AmountDollars float64           `json:"amount"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ACHAPI is the remote ACH/check rail surface the adapter depends on.
type ACHAPI interface {
	SubmitPayment(ctx context.Context, req ACHSubmitRequest) (*ACHSubmitResponse, error)
	SubmitRefund(ctx context.Context, req ACHRefundRequest) (*ACHRefundResponse, error)
	PaymentStatus(ctx context.Context, paymentID string) (*ACHStatusResponse, error)
}

// ACHRail submits asynchronous ACH and check payments. ACH clears over days,
// so an accepted submission reports processing, never succeeded; only a
// status read observing "processed" maps to succeeded.
type ACHRail struct {
	api           ACHAPI
	sourceID      string
	webhookSecret string
}

// NewACHRail constructs the ACH rail adapter from a decrypted config.
func NewACHRail(cfg types.ProcessorConfig, api ACHAPI) *ACHRail {
	return &ACHRail{
		api:           api,
		sourceID:      cfg.Credentials["source_id"],
		webhookSecret: cfg.Credentials[webhookSecretKey],
	}
}

// Kind implements Adapter.
func (a *ACHRail) Kind() types.ProcessorKind { return types.KindACHRail }

// ProcessPayment implements Adapter.
func (a *ACHRail) ProcessPayment(ctx context.Context, req types.PaymentRequest) (types.PaymentResult, error) {
	if req.Amount <= 0 {
		return types.PaymentResult{}, payerrors.ErrInvalidAmount
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	reference := req.InvoiceID
	if reference == "" {
		reference = uuid.NewString()
	}

	resp, err := a.api.SubmitPayment(ctx, ACHSubmitRequest{
		SourceID:      a.sourceID,
		AmountDollars: dollarsFromMinor(req.Amount),
		Currency:      currency,
		Description:   req.Description,
		Reference:     reference,
	})
	if err != nil {
		return types.PaymentResult{}, payerrors.Unavailable(string(types.KindACHRail), err)
	}

	result := types.PaymentResult{
		TransactionID: resp.PaymentID,
		Processor:     types.KindACHRail,
	}
	if resp.ErrorCode != "" || resp.Status == "failed" || resp.Status == "rejected" {
		result.Status = types.PaymentStatusFailed
		result.FailureCode = resp.ErrorCode
		result.FailureMessage = resp.ErrorMessage
		if result.FailureCode == "" {
			result.FailureCode = resp.Status
		}
		return result, nil
	}

	// Accepted for clearing; succeeded is never claimed at submission time.
	result.Success = true
	result.Status = types.PaymentStatusProcessing
	return result, nil
}

// RefundPayment implements Adapter.
func (a *ACHRail) RefundPayment(ctx context.Context, req types.RefundRequest) (types.RefundResult, error) {
	resp, err := a.api.SubmitRefund(ctx, ACHRefundRequest{
		PaymentID:     req.TransactionID,
		AmountDollars: dollarsFromMinor(req.Amount),
		Reason:        req.Reason,
		Reference:     uuid.NewString(),
	})
	if err != nil {
		return types.RefundResult{}, payerrors.Unavailable(string(types.KindACHRail), err)
	}

	result := types.RefundResult{
		RefundID:  resp.RefundID,
		Processor: types.KindACHRail,
	}
	if resp.ErrorCode != "" || resp.Status == "failed" || resp.Status == "rejected" {
		result.Status = types.RefundStatusFailed
		result.FailureCode = resp.ErrorCode
		result.FailureMessage = resp.ErrorMessage
		return result, nil
	}
	result.Success = true
	result.Status = types.RefundStatusProcessing
	return result, nil
}

// GetPaymentStatus implements Adapter. Remote "processed" maps to succeeded;
// anything else still in flight maps to processing.
func (a *ACHRail) GetPaymentStatus(ctx context.Context, transactionID string) (types.PaymentStatusInfo, error) {
	resp, err := a.api.PaymentStatus(ctx, transactionID)
	if err != nil {
		return types.PaymentStatusInfo{}, payerrors.Unavailable(string(types.KindACHRail), err)
	}

	info := types.PaymentStatusInfo{
		Amount:   minorFromDollars(resp.AmountDollars),
		Metadata: resp.Metadata,
	}
	// ACH clears asynchronously; until the rail reports processed, the
	// payment is still in flight. Returns and failures arrive as webhooks.
	if resp.Status == "processed" {
		info.Status = types.PaymentStatusSucceeded
	} else {
		info.Status = types.PaymentStatusProcessing
	}
	return info, nil
}

// VerifyWebhook implements Adapter.
func (a *ACHRail) VerifyWebhook(payload []byte, signature string) bool {
	return webhook.Verify([]byte(a.webhookSecret), payload, signature)
}

// SupportedChannels implements Adapter.
func (a *ACHRail) SupportedChannels() []types.Channel {
	return ChannelsFor(types.KindACHRail)
}
