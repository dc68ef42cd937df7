package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	payerrors "github.com/byronwade/thorbis-payments/pkg/errors"
	"github.com/byronwade/thorbis-payments/pkg/types"
)

// Lambda warm-start reuse: the engine and its AWS clients survive across
// invocations of one execution environment.
var (
	lambdaEngine     *Engine
	lambdaEngineOnce sync.Once
	lambdaEngineErr  error
)

// NewLambdaOptimized returns a process-wide engine, built once per cold
// start. Subsequent calls return the same instance regardless of cfg.
func NewLambdaOptimized(cfg Config, opts ...Option) (*Engine, error) {
	lambdaEngineOnce.Do(func() {
		lambdaEngine, lambdaEngineErr = New(cfg, opts...)
	})
	return lambdaEngine, lambdaEngineErr
}

// IsLambdaEnvironment reports whether the process is running inside AWS
// Lambda.
func IsLambdaEnvironment() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// LambdaMemoryMB returns the configured function memory, or 0 outside
// Lambda.
func LambdaMemoryMB() int {
	mb, _ := strconv.Atoi(os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE"))
	return mb
}

// LambdaHandler serves the payment API behind API Gateway.
type LambdaHandler struct {
	engine *Engine
}

// NewLambdaHandler wraps an engine for API Gateway dispatch.
func NewLambdaHandler(engine *Engine) *LambdaHandler {
	return &LambdaHandler{engine: engine}
}

// Start hands the handler to the Lambda runtime. Blocks until shutdown.
func (h *LambdaHandler) Start() {
	lambda.Start(h.HandleRequest)
}

type lambdaPaymentRequest struct {
	CompanyID string `json:"company_id"`
	types.PaymentRequest
	Processor types.ProcessorKind `json:"processor,omitempty"`
}

type lambdaRefundRequest struct {
	CompanyID string `json:"company_id"`
	types.RefundRequest
}

type lambdaWebhookRequest struct {
	CompanyID string              `json:"company_id"`
	Kind      types.ProcessorKind `json:"kind"`
	Signature string              `json:"signature"`
	Payload   json.RawMessage     `json:"payload"`
}

// HandleRequest dispatches one API Gateway proxy event.
func (h *LambdaHandler) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch {
	case req.HTTPMethod == http.MethodPost && req.Path == "/payments":
		return h.processPayment(ctx, req.Body)
	case req.HTTPMethod == http.MethodPost && req.Path == "/refunds":
		return h.refundPayment(ctx, req.Body)
	case req.HTTPMethod == http.MethodGet && strings.HasPrefix(req.Path, "/payments/"):
		return h.paymentStatus(ctx, req)
	case req.HTTPMethod == http.MethodPost && req.Path == "/webhooks":
		return h.handleWebhook(ctx, req.Body)
	}
	return respond(http.StatusNotFound, map[string]string{"error": "not found"})
}

func (h *LambdaHandler) processPayment(ctx context.Context, body string) (events.APIGatewayProxyResponse, error) {
	var in lambdaPaymentRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return respond(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	var forced []types.ProcessorKind
	if in.Processor != "" {
		forced = append(forced, in.Processor)
	}
	out, err := h.engine.ProcessPayment(ctx, in.CompanyID, in.PaymentRequest, forced...)
	if err != nil {
		return respondError(err)
	}
	status := http.StatusOK
	if out.Blocked {
		status = http.StatusForbidden
	}
	return respond(status, out)
}

func (h *LambdaHandler) refundPayment(ctx context.Context, body string) (events.APIGatewayProxyResponse, error) {
	var in lambdaRefundRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return respond(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	result, err := h.engine.RefundPayment(ctx, in.CompanyID, in.RefundRequest)
	if err != nil {
		return respondError(err)
	}
	return respond(http.StatusOK, result)
}

func (h *LambdaHandler) paymentStatus(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	// GET /payments/{kind}/{transaction_id}
	parts := strings.Split(strings.Trim(req.Path, "/"), "/")
	if len(parts) != 3 {
		return respond(http.StatusNotFound, map[string]string{"error": "not found"})
	}
	companyID := req.QueryStringParameters["company_id"]
	info, err := h.engine.PaymentStatus(ctx, companyID, types.ProcessorKind(parts[1]), parts[2])
	if err != nil {
		return respondError(err)
	}
	return respond(http.StatusOK, info)
}

func (h *LambdaHandler) handleWebhook(ctx context.Context, body string) (events.APIGatewayProxyResponse, error) {
	var in lambdaWebhookRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return respond(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	key, err := h.engine.HandleWebhook(ctx, in.CompanyID, in.Kind, in.Payload, in.Signature)
	if err != nil {
		return respondError(err)
	}
	return respond(http.StatusOK, map[string]string{"archive_key": key})
}

func respond(status int, body any) (events.APIGatewayProxyResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}, nil
}

func respondError(err error) (events.APIGatewayProxyResponse, error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, payerrors.ErrNoBankAccount),
		errors.Is(err, payerrors.ErrNotConfigured),
		errors.Is(err, payerrors.ErrInvalidAmount):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, payerrors.ErrWebhookVerification):
		status = http.StatusUnauthorized
	case errors.Is(err, payerrors.ErrConfigNotFound):
		status = http.StatusNotFound
	case payerrors.IsRetryable(err):
		status = http.StatusBadGateway
	}
	return respond(status, map[string]string{"error": err.Error()})
}
