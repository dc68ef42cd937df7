package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	payerrors "github.com/byronwade/thorbis-payments/pkg/errors"
	"github.com/byronwade/thorbis-payments/pkg/signal"
	"github.com/byronwade/thorbis-payments/pkg/types"
	"github.com/byronwade/thorbis-payments/pkg/webhook"
)

// DefaultPlatformCeiling is the amount above which the platform billing rail
// emits a warning signal: $1,000 in minor units.
const DefaultPlatformCeiling = 100_000

// PlatformChargeRequest is the platform billing wire request.
type PlatformChargeRequest struct {
	AccountID   string            `json:"account_id"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// PlatformChargeResponse is the platform billing wire response.
type PlatformChargeResponse struct {
	ChargeID     string `json:"charge_id"`
	Paid         bool   `json:"paid"`
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// PlatformRefundRequest is the platform billing refund wire request.
type PlatformRefundRequest struct {
	ChargeID string `json:"charge_id"`
	Amount   int64  `json:"amount,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// PlatformRefundResponse is the platform billing refund wire response.
type PlatformRefundResponse struct {
	RefundID     string `json:"refund_id"`
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// PlatformChargeStatus is the platform billing status wire response.
type PlatformChargeStatus struct {
	ChargeID string            `json:"charge_id"`
	Status   string            `json:"status"`
	Amount   int64             `json:"amount"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PlatformAPI is the remote platform billing surface the adapter depends on.
type PlatformAPI interface {
	Charge(ctx context.Context, req PlatformChargeRequest) (*PlatformChargeResponse, error)
	Refund(ctx context.Context, req PlatformRefundRequest) (*PlatformRefundResponse, error)
	ChargeStatus(ctx context.Context, chargeID string) (*PlatformChargeStatus, error)
}

// PlatformBilling is the internal subscription billing rail. It is not meant
// for large customer-facing transactions: amounts above the ceiling emit a
// warning signal to catch accidental misuse, but the charge still proceeds.
type PlatformBilling struct {
	api           PlatformAPI
	companyID     string
	accountID     string
	webhookSecret string
	ceiling       int64
	bus           *signal.Bus
}

// NewPlatformBilling constructs the platform billing adapter. A zero ceiling
// uses DefaultPlatformCeiling; a nil bus suppresses signals.
func NewPlatformBilling(cfg types.ProcessorConfig, api PlatformAPI, ceiling int64, bus *signal.Bus) *PlatformBilling {
	if ceiling <= 0 {
		ceiling = DefaultPlatformCeiling
	}
	return &PlatformBilling{
		api:           api,
		companyID:     cfg.CompanyID,
		accountID:     cfg.Credentials["account_id"],
		webhookSecret: cfg.Credentials[webhookSecretKey],
		ceiling:       ceiling,
		bus:           bus,
	}
}

// Kind implements Adapter.
func (p *PlatformBilling) Kind() types.ProcessorKind { return types.KindPlatformBilling }

// ProcessPayment implements Adapter.
func (p *PlatformBilling) ProcessPayment(ctx context.Context, req types.PaymentRequest) (types.PaymentResult, error) {
	if req.Amount <= 0 {
		return types.PaymentResult{}, payerrors.ErrInvalidAmount
	}

	if req.Amount > p.ceiling && p.bus != nil {
		// Warning, not an error: the charge still goes through.
		_ = p.bus.Emit(ctx, signal.PlatformBillingCeiling, signal.Event{
			CompanyID: p.companyID,
			Processor: types.KindPlatformBilling,
			Amount:    req.Amount,
			Severity:  signal.SeverityWarning,
			Message:   fmt.Sprintf("platform billing charge of %d exceeds ceiling of %d", req.Amount, p.ceiling),
			At:        time.Now(),
		})
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	reference := req.InvoiceID
	if reference == "" {
		reference = uuid.NewString()
	}

	resp, err := p.api.Charge(ctx, PlatformChargeRequest{
		AccountID:   p.accountID,
		Amount:      req.Amount,
		Currency:    currency,
		Reference:   reference,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return types.PaymentResult{}, payerrors.Unavailable(string(types.KindPlatformBilling), err)
	}

	result := types.PaymentResult{
		TransactionID: resp.ChargeID,
		Processor:     types.KindPlatformBilling,
	}
	if resp.Paid {
		result.Success = true
		result.Status = types.PaymentStatusSucceeded
	} else {
		result.Status = types.PaymentStatusFailed
		result.FailureCode = resp.ErrorCode
		result.FailureMessage = resp.ErrorMessage
		if result.FailureCode == "" {
			result.FailureCode = "charge_failed"
		}
	}
	return result, nil
}

// RefundPayment implements Adapter.
func (p *PlatformBilling) RefundPayment(ctx context.Context, req types.RefundRequest) (types.RefundResult, error) {
	resp, err := p.api.Refund(ctx, PlatformRefundRequest{
		ChargeID: req.TransactionID,
		Amount:   req.Amount,
		Reason:   req.Reason,
	})
	if err != nil {
		return types.RefundResult{}, payerrors.Unavailable(string(types.KindPlatformBilling), err)
	}

	result := types.RefundResult{
		RefundID:  resp.RefundID,
		Processor: types.KindPlatformBilling,
	}
	switch resp.Status {
	case "succeeded":
		result.Success = true
		result.Status = types.RefundStatusSucceeded
	case "pending", "processing":
		result.Success = true
		result.Status = types.RefundStatusProcessing
	default:
		result.Status = types.RefundStatusFailed
		result.FailureCode = resp.ErrorCode
		result.FailureMessage = resp.ErrorMessage
	}
	return result, nil
}

// GetPaymentStatus implements Adapter.
func (p *PlatformBilling) GetPaymentStatus(ctx context.Context, transactionID string) (types.PaymentStatusInfo, error) {
	resp, err := p.api.ChargeStatus(ctx, transactionID)
	if err != nil {
		return types.PaymentStatusInfo{}, payerrors.Unavailable(string(types.KindPlatformBilling), err)
	}

	info := types.PaymentStatusInfo{
		Amount:   resp.Amount,
		Metadata: resp.Metadata,
	}
	switch resp.Status {
	case "paid", "succeeded":
		info.Status = types.PaymentStatusSucceeded
	case "failed":
		info.Status = types.PaymentStatusFailed
	case "pending":
		info.Status = types.PaymentStatusPending
	default:
		info.Status = types.PaymentStatusProcessing
	}
	return info, nil
}

// VerifyWebhook implements Adapter.
func (p *PlatformBilling) VerifyWebhook(payload []byte, signature string) bool {
	return webhook.Verify([]byte(p.webhookSecret), payload, signature)
}

// SupportedChannels implements Adapter.
func (p *PlatformBilling) SupportedChannels() []types.Channel {
	return ChannelsFor(types.KindPlatformBilling)
}
