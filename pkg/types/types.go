// Package types defines the shared value objects and stored records used by
// the payment routing and trust engine. All monetary amounts are int64 minor
// currency units (cents); adapters that speak major units convert at their
// own wire boundary and never leak major-unit values into these types.
package types

import "time"

// ProcessorKind identifies one payment rail integration.
type ProcessorKind string

const (
	KindCardRail        ProcessorKind = "card_rail"
	KindBankLink        ProcessorKind = "bank_link"
	KindACHRail         ProcessorKind = "ach_rail"
	KindPlatformBilling ProcessorKind = "platform_billing"
)

// Valid reports whether k is one of the closed set of processor kinds.
func (k ProcessorKind) Valid() bool {
	switch k {
	case KindCardRail, KindBankLink, KindACHRail, KindPlatformBilling:
		return true
	}
	return false
}

// Channel is the entry point a payment arrives through.
type Channel string

const (
	ChannelOnline      Channel = "online"
	ChannelCardPresent Channel = "card_present"
	ChannelTapToPay    Channel = "tap_to_pay"
	ChannelACH         Channel = "ach"
	ChannelWire        Channel = "wire"
	ChannelCheck       Channel = "check"
)

// Valid reports whether c is one of the closed set of channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelOnline, ChannelCardPresent, ChannelTapToPay, ChannelACH, ChannelWire, ChannelCheck:
		return true
	}
	return false
}

// PaymentStatus is the normalized lifecycle state of a payment attempt.
type PaymentStatus string

const (
	PaymentStatusPending        PaymentStatus = "pending"
	PaymentStatusProcessing     PaymentStatus = "processing"
	PaymentStatusSucceeded      PaymentStatus = "succeeded"
	PaymentStatusFailed         PaymentStatus = "failed"
	PaymentStatusRequiresAction PaymentStatus = "requires_action"
)

// Terminal reports whether the status represents a completed attempt whose
// outcome should be folded into trust metrics. requires_action and the
// in-flight states are still awaiting resolution.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed
}

// RefundStatus is the normalized lifecycle state of a refund.
type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "pending"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusSucceeded  RefundStatus = "succeeded"
	RefundStatusFailed     RefundStatus = "failed"
)

// ProcessorConfig is one active (company, processor kind) configuration row.
// A company has at most one active config per kind. Selection never mutates
// this record.
type ProcessorConfig struct {
	CompanyID string        `dynamodbav:"company_id" json:"company_id"`
	Kind      ProcessorKind `dynamodbav:"kind" json:"kind"`
	Live      bool          `dynamodbav:"live" json:"live"`
	Active    bool          `dynamodbav:"active" json:"active"`

	// EncryptedCredentials is the opaque bundle as persisted. The credential
	// collaborator decrypts it into Credentials before an adapter is built.
	EncryptedCredentials []byte            `dynamodbav:"encrypted_credentials" json:"-"`
	Credentials          map[string]string `dynamodbav:"-" json:"-"`

	// MaxPaymentAmount and RequiresApprovalAbove are minor units. Zero means
	// unset; the trust engine applies its defaults.
	MaxPaymentAmount      int64 `dynamodbav:"max_payment_amount" json:"max_payment_amount"`
	RequiresApprovalAbove int64 `dynamodbav:"requires_approval_above" json:"requires_approval_above"`

	CreatedAt time.Time `dynamodbav:"created_at" json:"created_at"`
	Version   int       `dynamodbav:"version" json:"version"`
}

// TrustScoreRecord holds the per-company payment history metrics and the
// score derived from them. OverallScore is always recomputed from the other
// fields, never set directly by callers. Version is the optimistic lock used
// to serialize concurrent updates for the same company.
type TrustScoreRecord struct {
	CompanyID string `dynamodbav:"company_id" json:"company_id"`

	OverallScore float64 `dynamodbav:"overall_score" json:"overall_score"`

	TotalPaymentsCount      int64 `dynamodbav:"total_payments_count" json:"total_payments_count"`
	SuccessfulPaymentsCount int64 `dynamodbav:"successful_payments_count" json:"successful_payments_count"`
	FailedPaymentsCount     int64 `dynamodbav:"failed_payments_count" json:"failed_payments_count"`
	TotalPaymentsVolume     int64 `dynamodbav:"total_payments_volume" json:"total_payments_volume"`
	LargestPaymentAmount    int64 `dynamodbav:"largest_payment_amount" json:"largest_payment_amount"`

	RefundedAmount int64   `dynamodbav:"refunded_amount" json:"refunded_amount"`
	RefundRate     float64 `dynamodbav:"refund_rate" json:"refund_rate"`

	AccountAgeDays int64 `dynamodbav:"account_age_days" json:"account_age_days"`

	BusinessVerified    bool `dynamodbav:"business_verified" json:"business_verified"`
	BankAccountVerified bool `dynamodbav:"bank_account_verified" json:"bank_account_verified"`
	IdentityVerified    bool `dynamodbav:"identity_verified" json:"identity_verified"`

	LastCalculatedAt time.Time `dynamodbav:"last_calculated_at" json:"last_calculated_at"`
	Version          int       `dynamodbav:"version" json:"version"`
}

// PaymentRequest is the transient request-scoped input to a payment attempt.
type PaymentRequest struct {
	Amount          int64             `json:"amount"` // minor units, > 0
	Currency        string            `json:"currency,omitempty"`
	InvoiceID       string            `json:"invoice_id,omitempty"`
	CustomerID      string            `json:"customer_id,omitempty"`
	PaymentMethodID string            `json:"payment_method_id,omitempty"`
	Channel         Channel           `json:"channel"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Description     string            `json:"description,omitempty"`
}

// PaymentResult is the normalized outcome of one adapter invocation. Remote
// declines are results, not errors: Success false with Status failed and the
// failure code/message pair filled in.
type PaymentResult struct {
	Success       bool          `json:"success"`
	TransactionID string        `json:"transaction_id,omitempty"` // absent on pre-authorization failures
	Status        PaymentStatus `json:"status"`

	// ClientToken carries the continuation data the caller needs to complete
	// a redirect or challenge flow when Status is requires_action.
	ClientToken string `json:"client_token,omitempty"`

	FailureCode    string `json:"failure_code,omitempty"`
	FailureMessage string `json:"failure_message,omitempty"`

	Processor ProcessorKind     `json:"processor,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"` // opaque processor data for auditing
}

// RefundRequest asks for a full or partial refund of an earlier payment.
type RefundRequest struct {
	TransactionID string `json:"transaction_id"`
	// Amount in minor units; zero means refund the original amount in full.
	Amount int64  `json:"amount,omitempty"`
	Reason string `json:"reason,omitempty"`
	// Kind routes the refund to the processor that took the original payment.
	Kind ProcessorKind `json:"kind,omitempty"`
}

// RefundResult is the normalized outcome of a refund attempt.
type RefundResult struct {
	Success        bool          `json:"success"`
	RefundID       string        `json:"refund_id,omitempty"`
	Status         RefundStatus  `json:"status"`
	FailureCode    string        `json:"failure_code,omitempty"`
	FailureMessage string        `json:"failure_message,omitempty"`
	Processor      ProcessorKind `json:"processor,omitempty"`
}

// PaymentStatusInfo is the result of a status read on the remote processor.
type PaymentStatusInfo struct {
	Status   PaymentStatus     `json:"status"`
	Amount   int64             `json:"amount"` // minor units
	Metadata map[string]string `json:"metadata,omitempty"`
}
