// Package processor defines the uniform adapter contract and the four rail
// integrations behind it: card rail, bank link, ACH/check rail, and platform
// billing. Adapters normalize each rail's remote semantics into the shared
// PaymentResult/RefundResult model; remote declines are results, transport
// faults are ProcessorUnavailable errors.
package processor

import (
	"context"

	"github.com/byronwade/thorbis-payments/pkg/types"
)

// Adapter is the normalized contract every rail implements.
type Adapter interface {
	// Kind identifies the rail.
	Kind() types.ProcessorKind

	// ProcessPayment attempts the payment. Ordinary remote rejections come
	// back as a failed PaymentResult with a nil error; only transport-level
	// faults return a *errors.ProcessorUnavailableError.
	ProcessPayment(ctx context.Context, req types.PaymentRequest) (types.PaymentResult, error)

	// RefundPayment refunds an earlier payment, partially when req.Amount is
	// set, in full when it is zero. Same error discipline as ProcessPayment.
	RefundPayment(ctx context.Context, req types.RefundRequest) (types.RefundResult, error)

	// GetPaymentStatus is a pure read, safe to call repeatedly.
	GetPaymentStatus(ctx context.Context, transactionID string) (types.PaymentStatusInfo, error)

	// VerifyWebhook reports whether signature authenticates payload. The
	// comparison is timing safe and fails closed when no signing secret is
	// configured.
	VerifyWebhook(payload []byte, signature string) bool

	// SupportedChannels lists the channels this rail can serve.
	SupportedChannels() []types.Channel
}

// FailureCodeUnsupportedRail marks the structured refusal the bank-link
// adapter returns for process/refund. No remote attempt occurred, so the
// engine does not fold these into trust metrics.
const FailureCodeUnsupportedRail = "unsupported_rail"

// webhookSecretKey is the credential bundle entry holding the per-processor
// webhook signing secret.
const webhookSecretKey = "webhook_secret"

// ChannelsFor returns the static channel support for a rail kind without
// constructing an adapter. The selector's default rule consults this.
func ChannelsFor(kind types.ProcessorKind) []types.Channel {
	switch kind {
	case types.KindCardRail:
		return []types.Channel{types.ChannelOnline, types.ChannelCardPresent, types.ChannelTapToPay}
	case types.KindBankLink:
		return []types.Channel{types.ChannelACH}
	case types.KindACHRail:
		return []types.Channel{types.ChannelACH, types.ChannelCheck, types.ChannelWire}
	case types.KindPlatformBilling:
		return []types.Channel{types.ChannelOnline}
	}
	return nil
}

// SupportsChannel reports whether kind can serve ch.
func SupportsChannel(kind types.ProcessorKind, ch types.Channel) bool {
	for _, c := range ChannelsFor(kind) {
		if c == ch {
			return true
		}
	}
	return false
}
