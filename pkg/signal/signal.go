// Package signal defines the typed event bus the engine emits operational
// signals on. Consumers register hooks for the keys they care about; emission
// is asynchronous and never blocks the payment path.
package signal

import (
	"time"

	"github.com/zoobzio/hookz"

	"github.com/byronwade/thorbis-payments/pkg/types"
)

// Event keys emitted by the engine and adapters.
const (
	PaymentSucceeded       hookz.Key = "payment.succeeded"
	PaymentFailed          hookz.Key = "payment.failed"
	PaymentBlocked         hookz.Key = "payment.blocked"
	ProcessorUnavailable   hookz.Key = "processor.unavailable"
	PlatformBillingCeiling hookz.Key = "platform_billing.ceiling"
	WebhookReceived        hookz.Key = "webhook.received"
	WebhookRejected        hookz.Key = "webhook.rejected"
	RefundRecorded         hookz.Key = "refund.recorded"
)

// Severity of an emitted event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is the payload carried by every signal.
type Event struct {
	CompanyID string              `json:"company_id"`
	Processor types.ProcessorKind `json:"processor,omitempty"`
	Amount    int64               `json:"amount,omitempty"`
	Severity  Severity            `json:"severity"`
	Message   string              `json:"message,omitempty"`
	At        time.Time           `json:"at"`
}

// Bus is the hook service events are emitted on.
type Bus = hookz.Hooks[Event]

// NewBus creates an event bus with a bounded worker pool and a per-hook
// timeout so a slow consumer cannot stall emission.
func NewBus() *Bus {
	return hookz.New[Event](hookz.WithWorkers(4), hookz.WithTimeout(5*time.Second))
}
