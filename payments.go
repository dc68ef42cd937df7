// Package payments routes payments across a company's configured
// processors and gates them on the company's trust score. The Engine is
// the single entry point: it selects a processor, evaluates trust, calls
// the rail, and folds the outcome back into the trust record and the
// ledger stream.
package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zoobzio/hookz"

	"github.com/byronwade/thorbis-payments/pkg/credentials"
	payerrors "github.com/byronwade/thorbis-payments/pkg/errors"
	"github.com/byronwade/thorbis-payments/pkg/ledger"
	"github.com/byronwade/thorbis-payments/pkg/processor"
	"github.com/byronwade/thorbis-payments/pkg/route"
	"github.com/byronwade/thorbis-payments/pkg/session"
	"github.com/byronwade/thorbis-payments/pkg/signal"
	"github.com/byronwade/thorbis-payments/pkg/store"
	"github.com/byronwade/thorbis-payments/pkg/trust"
	"github.com/byronwade/thorbis-payments/pkg/types"
	"github.com/byronwade/thorbis-payments/pkg/webhook"
)

// Outcome is the full result of a payment attempt, carrying the trust
// gating decision alongside the processor result. When Blocked is true
// no processor was contacted and Result is zero.
type Outcome struct {
	Result types.PaymentResult `json:"result"`

	Allowed          bool    `json:"allowed"`
	RequiresApproval bool    `json:"requires_approval"`
	Score            float64 `json:"score"`
	Blocked          bool    `json:"blocked"`
	Reason           string  `json:"reason,omitempty"`

	// UserMessage is safe to show to an end user; raw processor text
	// never appears here.
	UserMessage string `json:"user_message,omitempty"`
}

// Engine orchestrates selection, trust gating, processing, and outcome
// recording. Safe for concurrent use.
type Engine struct {
	cfg      Config
	selector *route.Selector
	trust    *trust.Engine
	updater  *trust.Updater
	ledger   ledger.Publisher
	archiver *webhook.Archiver
	bus      *signal.Bus
}

type options struct {
	store      store.Store
	decryptor  credentials.Decryptor
	accounts   *credentials.AccountSource
	accountEnv string
	clients    *route.Clients
	ledger     ledger.Publisher
	archiver   *webhook.Archiver
	cache      trust.Cache
	bus        *signal.Bus
}

// Option overrides one of the engine's collaborators, mainly for tests
// and for callers embedding the engine in a larger service.
type Option func(*options)

// WithStore substitutes the config, trust, and bank account store.
func WithStore(s store.Store) Option { return func(o *options) { o.store = s } }

// WithDecryptor substitutes the credential decryptor.
func WithDecryptor(d credentials.Decryptor) Option { return func(o *options) { o.decryptor = d } }

// WithAccountSource decrypts credentials by assuming a role in the
// account that owns the named environment's key material.
func WithAccountSource(src *credentials.AccountSource, environment string) Option {
	return func(o *options) {
		o.accounts = src
		o.accountEnv = environment
	}
}

// WithClients substitutes the remote rail clients.
func WithClients(c route.Clients) Option { return func(o *options) { o.clients = &c } }

// WithLedger substitutes the ledger publisher.
func WithLedger(p ledger.Publisher) Option { return func(o *options) { o.ledger = p } }

// WithArchiver substitutes the webhook archiver.
func WithArchiver(a *webhook.Archiver) Option { return func(o *options) { o.archiver = a } }

// WithTrustCache substitutes the trust score cache.
func WithTrustCache(c trust.Cache) Option { return func(o *options) { o.cache = c } }

// WithBus substitutes the signal bus.
func WithBus(b *signal.Bus) Option { return func(o *options) { o.bus = b } }

// New builds an engine from cfg. Collaborators not supplied as options
// are wired from the config: DynamoDB-backed store, KMS decryptor, HTTP
// rail clients, Redis trust cache, Kafka ledger, and S3 archiver, each
// only when its config section is present.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.withDefaults()
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.bus == nil {
		o.bus = signal.NewBus()
	}

	var sess *session.Session
	awsSession := func() (*session.Session, error) {
		if sess != nil {
			return sess, nil
		}
		s, err := session.NewSession(&session.Config{
			Region:   cfg.Region,
			Endpoint: cfg.DynamoEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("aws session: %w", err)
		}
		sess = s
		return sess, nil
	}

	if o.store == nil {
		s, err := awsSession()
		if err != nil {
			return nil, err
		}
		client, err := s.DynamoClient()
		if err != nil {
			return nil, err
		}
		o.store = store.NewDynamo(client, cfg.Tables)
	}
	if o.decryptor == nil && o.accounts != nil {
		o.decryptor = o.accounts.Bound(o.accountEnv, cfg.KMSKeyARN)
	}
	if o.decryptor == nil && cfg.KMSKeyARN != "" {
		s, err := awsSession()
		if err != nil {
			return nil, err
		}
		o.decryptor = credentials.NewKMSFromAWSConfig(cfg.KMSKeyARN, s.AWSConfig())
	}
	if o.archiver == nil && cfg.Webhook.ArchiveBucket != "" {
		s, err := awsSession()
		if err != nil {
			return nil, err
		}
		o.archiver = webhook.NewArchiver(s.S3Client(), cfg.Webhook.ArchiveBucket)
	}
	if o.clients == nil {
		o.clients = httpClients(cfg)
	}
	if o.cache == nil && cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		o.cache = trust.NewRedisCache(client, cfg.Redis.TTL.Std())
	}
	if o.ledger == nil {
		if len(cfg.Kafka.Brokers) > 0 {
			o.ledger = ledger.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		} else {
			o.ledger = ledger.Nop{}
		}
	}

	registry := route.NewRegistry(*o.clients, o.bus, cfg.PlatformCeiling)
	updaterOpts := []trust.UpdaterOption{}
	if o.cache != nil {
		updaterOpts = append(updaterOpts, trust.WithCache(o.cache))
	}

	return &Engine{
		cfg:      cfg,
		selector: route.NewSelector(o.store, o.store, o.decryptor, registry),
		trust:    trust.NewEngine(o.store, o.cache),
		updater:  trust.NewUpdater(o.store, updaterOpts...),
		ledger:   o.ledger,
		archiver: o.archiver,
		bus:      o.bus,
	}, nil
}

func httpClients(cfg Config) *route.Clients {
	timeout := cfg.ProcessorTimeout.Std()
	c := &route.Clients{}
	if cfg.Rails.Card.BaseURL != "" {
		c.Card = processor.NewCardHTTPClient(cfg.Rails.Card.BaseURL, cfg.Rails.Card.APIKey, timeout)
	}
	if cfg.Rails.BankLink.BaseURL != "" {
		c.BankLink = processor.NewBankLinkHTTPClient(cfg.Rails.BankLink.BaseURL, cfg.Rails.BankLink.APIKey, timeout)
	}
	if cfg.Rails.ACH.BaseURL != "" {
		c.ACH = processor.NewACHHTTPClient(cfg.Rails.ACH.BaseURL, cfg.Rails.ACH.APIKey, timeout)
	}
	if cfg.Rails.Platform.BaseURL != "" {
		c.Platform = processor.NewPlatformHTTPClient(cfg.Rails.Platform.BaseURL, cfg.Rails.Platform.APIKey, timeout)
	}
	return c
}

// Events exposes the signal bus for hook registration.
func (e *Engine) Events() *signal.Bus { return e.bus }

// Close releases the engine's background resources.
func (e *Engine) Close() error {
	err := e.bus.Close()
	if lerr := e.ledger.Close(); err == nil {
		err = lerr
	}
	return err
}

// ProcessPayment runs one payment end to end: select a processor,
// evaluate the trust gate, call the rail, record the outcome. A trust
// block returns Outcome.Blocked true with a nil error; remote declines
// return a failed Result with a nil error. Only infrastructure problems
// return a non-nil error.
func (e *Engine) ProcessPayment(ctx context.Context, companyID string, req types.PaymentRequest, forced ...types.ProcessorKind) (Outcome, error) {
	if req.Amount <= 0 {
		return Outcome{}, payerrors.NewError("process", "", payerrors.ErrInvalidAmount)
	}

	in := route.SelectionInput{Amount: req.Amount, Channel: req.Channel}
	if len(forced) > 0 {
		in.ForcedKind = forced[0]
	}
	adapter, cfg, err := e.selector.Select(ctx, companyID, in)
	if err != nil {
		return Outcome{}, err
	}

	eval, err := e.trust.Evaluate(ctx, companyID, req.Amount, trust.LimitsFromConfig(cfg))
	if err != nil {
		return Outcome{}, err
	}
	if !eval.Allowed {
		e.emit(ctx, signal.PaymentBlocked, signal.Event{
			CompanyID: companyID,
			Processor: cfg.Kind,
			Amount:    req.Amount,
			Severity:  signal.SeverityWarning,
			Message:   eval.Reason,
		})
		return Outcome{
			Blocked:          true,
			RequiresApproval: eval.RequiresApproval,
			Score:            eval.Score,
			Reason:           eval.Reason,
			UserMessage:      "This payment cannot be processed right now. " + eval.Reason,
		}, nil
	}

	// The payment must finish even if the caller goes away mid-flight;
	// the rail call runs on a detached context with its own deadline.
	opCtx := context.WithoutCancel(ctx)
	result, err := e.callRail(opCtx, func(callCtx context.Context) (types.PaymentResult, error) {
		return adapter.ProcessPayment(callCtx, req)
	})
	if err != nil {
		e.emit(opCtx, signal.ProcessorUnavailable, signal.Event{
			CompanyID: companyID,
			Processor: cfg.Kind,
			Amount:    req.Amount,
			Severity:  signal.SeverityError,
			Message:   err.Error(),
		})
		if e.cfg.CountTransportFailures {
			e.recordOutcome(opCtx, companyID, false, req.Amount)
		}
		return Outcome{
			Allowed:          true,
			RequiresApproval: eval.RequiresApproval,
			Score:            eval.Score,
			UserMessage:      "The payment could not be processed. Please try again.",
		}, err
	}

	out := Outcome{
		Result:           result,
		Allowed:          true,
		RequiresApproval: eval.RequiresApproval,
		Score:            eval.Score,
	}

	switch {
	case result.Success:
		e.emit(opCtx, signal.PaymentSucceeded, signal.Event{
			CompanyID: companyID,
			Processor: result.Processor,
			Amount:    req.Amount,
			Severity:  signal.SeverityInfo,
		})
	case result.Status == types.PaymentStatusFailed:
		out.UserMessage = "The payment was declined."
		e.emit(opCtx, signal.PaymentFailed, signal.Event{
			CompanyID: companyID,
			Processor: result.Processor,
			Amount:    req.Amount,
			Severity:  signal.SeverityWarning,
			Message:   result.FailureCode,
		})
	}

	// Routing misconfigurations are not company behavior: a refusal such
	// as an unsupported rail must not depress the trust score.
	if result.Status.Terminal() && result.FailureCode != processor.FailureCodeUnsupportedRail {
		e.recordOutcome(opCtx, companyID, result.Success, req.Amount)
		e.publish(opCtx, ledger.Event{
			Kind:          ledger.EventPayment,
			CompanyID:     companyID,
			Processor:     result.Processor,
			TransactionID: result.TransactionID,
			Amount:        req.Amount,
			Currency:      req.Currency,
			Status:        string(result.Status),
			Success:       result.Success,
			FailureCode:   result.FailureCode,
			OccurredAt:    time.Now().UTC(),
		})
	}
	return out, nil
}

// RefundPayment routes a refund to the processor that took the original
// payment. req.Kind is required; the engine keeps no payment records of
// its own to look the rail up from.
func (e *Engine) RefundPayment(ctx context.Context, companyID string, req types.RefundRequest) (types.RefundResult, error) {
	if req.TransactionID == "" {
		return types.RefundResult{}, payerrors.NewError("refund", "", fmt.Errorf("transaction id is required"))
	}
	if !req.Kind.Valid() {
		return types.RefundResult{}, payerrors.NewError("refund", string(req.Kind), fmt.Errorf("processor kind is required"))
	}
	adapter, _, err := e.selector.ForKind(ctx, companyID, req.Kind)
	if err != nil {
		return types.RefundResult{}, err
	}

	opCtx := context.WithoutCancel(ctx)
	var result types.RefundResult
	result, err = callWithRetry(opCtx, e.cfg, func(callCtx context.Context) (types.RefundResult, error) {
		return adapter.RefundPayment(callCtx, req)
	})
	if err != nil {
		return types.RefundResult{}, err
	}

	if result.Success {
		severity, message := signal.SeverityInfo, ""
		if req.Amount > 0 {
			if recErr := e.updater.RecordRefund(opCtx, companyID, req.Amount); recErr != nil {
				severity, message = signal.SeverityError, "trust update failed: "+recErr.Error()
			}
		}
		e.emit(opCtx, signal.RefundRecorded, signal.Event{
			CompanyID: companyID,
			Processor: result.Processor,
			Amount:    req.Amount,
			Severity:  severity,
			Message:   message,
		})
		e.publish(opCtx, ledger.Event{
			Kind:       ledger.EventRefund,
			CompanyID:  companyID,
			Processor:  result.Processor,
			RefundID:   result.RefundID,
			Amount:     req.Amount,
			Status:     string(result.Status),
			Success:    true,
			OccurredAt: time.Now().UTC(),
		})
	}
	return result, nil
}

// PaymentStatus reads the current status of a payment from its rail.
func (e *Engine) PaymentStatus(ctx context.Context, companyID string, kind types.ProcessorKind, transactionID string) (types.PaymentStatusInfo, error) {
	adapter, _, err := e.selector.ForKind(ctx, companyID, kind)
	if err != nil {
		return types.PaymentStatusInfo{}, err
	}
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.ProcessorTimeout.Std())
	defer cancel()
	return adapter.GetPaymentStatus(callCtx, transactionID)
}

// HandleWebhook authenticates an inbound processor webhook, archives it,
// and emits a received signal. The archive key is returned; it is empty
// when no archiver is configured. Verification failures discard the
// payload and return ErrWebhookVerification.
func (e *Engine) HandleWebhook(ctx context.Context, companyID string, kind types.ProcessorKind, payload []byte, signature string) (string, error) {
	adapter, _, err := e.selector.ForKind(ctx, companyID, kind)
	if err != nil {
		return "", err
	}
	if !adapter.VerifyWebhook(payload, signature) {
		e.emit(ctx, signal.WebhookRejected, signal.Event{
			CompanyID: companyID,
			Processor: kind,
			Severity:  signal.SeverityWarning,
		})
		return "", payerrors.NewError("webhook", string(kind), payerrors.ErrWebhookVerification)
	}

	var key string
	if e.archiver != nil {
		key, err = e.archiver.Archive(ctx, companyID, kind, payload)
		if err != nil {
			return "", payerrors.NewError("webhook", string(kind), err)
		}
	}
	e.emit(ctx, signal.WebhookReceived, signal.Event{
		CompanyID: companyID,
		Processor: kind,
		Severity:  signal.SeverityInfo,
		Message:   key,
	})
	return key, nil
}

// CreateLinkToken starts a bank account linking session for a user of
// the company, via the company's bank link processor.
func (e *Engine) CreateLinkToken(ctx context.Context, companyID, userID string) (*processor.LinkToken, error) {
	link, err := e.bankLink(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return link.CreateLinkToken(ctx, userID)
}

// ExchangePublicToken completes a linking session, trading the public
// token from the client flow for a durable access token.
func (e *Engine) ExchangePublicToken(ctx context.Context, companyID, publicToken string) (*processor.AccessToken, error) {
	link, err := e.bankLink(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return link.ExchangePublicToken(ctx, publicToken)
}

func (e *Engine) bankLink(ctx context.Context, companyID string) (*processor.BankLink, error) {
	adapter, _, err := e.selector.ForKind(ctx, companyID, types.KindBankLink)
	if err != nil {
		return nil, err
	}
	link, ok := adapter.(*processor.BankLink)
	if !ok {
		return nil, payerrors.NewError("link", string(types.KindBankLink), fmt.Errorf("adapter does not support account linking"))
	}
	return link, nil
}

// TrustScore evaluates the company's trust standing for an amount
// without touching any processor.
func (e *Engine) TrustScore(ctx context.Context, companyID string, amount int64) (trust.Evaluation, error) {
	return e.trust.Evaluate(ctx, companyID, amount, trust.Limits{})
}

// callRail invokes fn under the configured timeout, retrying only
// transport failures. Declines come back as results and are never
// retried; neither is anything after a non-retryable error.
func (e *Engine) callRail(ctx context.Context, fn func(context.Context) (types.PaymentResult, error)) (types.PaymentResult, error) {
	return callWithRetry(ctx, e.cfg, fn)
}

func callWithRetry[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, cfg.ProcessorTimeout.Std())
		result, err := fn(callCtx)
		cancel()
		if err == nil {
			return result, nil
		}
		if !payerrors.IsRetryable(err) || attempt >= cfg.RetryAttempts {
			return zero, err
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(cfg.RetryBackoff.Std() * time.Duration(attempt+1)):
		}
	}
}

func (e *Engine) recordOutcome(ctx context.Context, companyID string, success bool, amount int64) {
	if err := e.updater.RecordOutcome(ctx, companyID, success, amount); err != nil {
		e.emit(ctx, signal.PaymentFailed, signal.Event{
			CompanyID: companyID,
			Severity:  signal.SeverityError,
			Message:   "trust update failed: " + err.Error(),
		})
	}
}

func (e *Engine) publish(ctx context.Context, event ledger.Event) {
	// Ledger delivery is best effort from the payment path; the stream
	// is reconciled against processor reports downstream.
	_ = e.ledger.Publish(ctx, event)
}

func (e *Engine) emit(ctx context.Context, key hookz.Key, event signal.Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	// Emission is asynchronous; a full bus drops the event rather than
	// stalling the payment path.
	_ = e.bus.Emit(ctx, key, event)
}
