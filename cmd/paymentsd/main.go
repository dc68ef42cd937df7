package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/zoobzio/hookz"

	payments "github.com/byronwade/thorbis-payments"
	payerrors "github.com/byronwade/thorbis-payments/pkg/errors"
	"github.com/byronwade/thorbis-payments/pkg/signal"
	"github.com/byronwade/thorbis-payments/pkg/types"
)

var engine *payments.Engine

func main() {
	cfg := payments.DefaultConfig()
	if path := os.Getenv("PAYMENTS_CONFIG"); path != "" {
		loaded, err := payments.LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	var err error
	engine, err = payments.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}
	defer engine.Close()

	logSignals(engine)

	if payments.IsLambdaEnvironment() {
		payments.NewLambdaHandler(engine).Start()
		return
	}

	r := gin.Default()
	r.POST("/payments", processHandler)
	r.POST("/refunds", refundHandler)
	r.GET("/payments/:kind/:id", statusHandler)
	r.POST("/webhooks/:kind", webhookHandler)
	r.POST("/link/token", linkTokenHandler)
	r.POST("/link/exchange", linkExchangeHandler)
	r.GET("/trust/:company_id", trustHandler)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("Payments API starting on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// logSignals subscribes a log sink to the engine's operational signals.
func logSignals(e *payments.Engine) {
	keys := []hookz.Key{
		signal.PaymentSucceeded,
		signal.PaymentFailed,
		signal.PaymentBlocked,
		signal.ProcessorUnavailable,
		signal.PlatformBillingCeiling,
		signal.WebhookReceived,
		signal.WebhookRejected,
		signal.RefundRecorded,
	}
	for _, key := range keys {
		key := key
		if _, err := e.Events().Hook(key, func(_ context.Context, ev signal.Event) error {
			log.Printf("[%s] %s company=%s processor=%s amount=%d %s",
				ev.Severity, key, ev.CompanyID, ev.Processor, ev.Amount, ev.Message)
			return nil
		}); err != nil {
			log.Printf("Failed to register signal hook %s: %v", key, err)
		}
	}
}

type paymentBody struct {
	CompanyID string `json:"company_id" binding:"required"`
	types.PaymentRequest
	Processor types.ProcessorKind `json:"processor,omitempty"`
}

func processHandler(c *gin.Context) {
	var body paymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var forced []types.ProcessorKind
	if body.Processor != "" {
		forced = append(forced, body.Processor)
	}
	out, err := engine.ProcessPayment(c.Request.Context(), body.CompanyID, body.PaymentRequest, forced...)
	if err != nil {
		fail(c, err)
		return
	}
	if out.Blocked {
		c.JSON(http.StatusForbidden, out)
		return
	}
	c.JSON(http.StatusOK, out)
}

type refundBody struct {
	CompanyID string `json:"company_id" binding:"required"`
	types.RefundRequest
}

func refundHandler(c *gin.Context) {
	var body refundBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := engine.RefundPayment(c.Request.Context(), body.CompanyID, body.RefundRequest)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func statusHandler(c *gin.Context) {
	companyID := c.Query("company_id")
	kind := types.ProcessorKind(c.Param("kind"))
	info, err := engine.PaymentStatus(c.Request.Context(), companyID, kind, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func webhookHandler(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}
	kind := types.ProcessorKind(c.Param("kind"))
	companyID := c.Query("company_id")
	signature := c.GetHeader("X-Signature")

	key, err := engine.HandleWebhook(c.Request.Context(), companyID, kind, payload, signature)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archive_key": key})
}

type linkTokenBody struct {
	CompanyID string `json:"company_id" binding:"required"`
	UserID    string `json:"user_id" binding:"required"`
}

func linkTokenHandler(c *gin.Context) {
	var body linkTokenBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := engine.CreateLinkToken(c.Request.Context(), body.CompanyID, body.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

type linkExchangeBody struct {
	CompanyID   string `json:"company_id" binding:"required"`
	PublicToken string `json:"public_token" binding:"required"`
}

func linkExchangeHandler(c *gin.Context) {
	var body linkExchangeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := engine.ExchangePublicToken(c.Request.Context(), body.CompanyID, body.PublicToken)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

func trustHandler(c *gin.Context) {
	eval, err := engine.TrustScore(c.Request.Context(), c.Param("company_id"), 0)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, eval)
}

func fail(c *gin.Context, err error) {
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
	c.JSON(status, gin.H{"error": err.Error()})
}
