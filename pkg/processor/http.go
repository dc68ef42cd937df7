package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// railHTTP is the shared JSON-over-HTTP plumbing behind the default remote
// clients. Any transport or non-2xx response surfaces as a plain error; the
// adapters classify those as ProcessorUnavailable. Declines arrive as 2xx
// bodies with result codes.
type railHTTP struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newRailHTTP(baseURL, apiKey string, timeout time.Duration) railHTTP {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return railHTTP{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (r railHTTP) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	return r.do(req, out)
}

func (r railHTTP) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	return r.do(req, out)
}

func (r railHTTP) do(req *http.Request, out any) error {
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("remote returned %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CardHTTPClient is the default CardAPI implementation.
type CardHTTPClient struct {
	http railHTTP
}

// NewCardHTTPClient creates a card rail client for the given endpoint.
func NewCardHTTPClient(baseURL, apiKey string, timeout time.Duration) *CardHTTPClient {
	return &CardHTTPClient{http: newRailHTTP(baseURL, apiKey, timeout)}
}

// Authorize implements CardAPI.
func (c *CardHTTPClient) Authorize(ctx context.Context, req CardAuthorizeRequest) (*CardAuthorizeResponse, error) {
	var resp CardAuthorizeResponse
	if err := c.http.post(ctx, "/payments", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refund implements CardAPI.
func (c *CardHTTPClient) Refund(ctx context.Context, req CardRefundRequest) (*CardRefundResponse, error) {
	var resp CardRefundResponse
	path := fmt.Sprintf("/payments/%s/refunds", url.PathEscape(req.PSPReference))
	if err := c.http.post(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PaymentDetails implements CardAPI.
func (c *CardHTTPClient) PaymentDetails(ctx context.Context, pspReference string) (*CardPaymentDetails, error) {
	var resp CardPaymentDetails
	if err := c.http.get(ctx, "/payments/"+url.PathEscape(pspReference), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BankLinkHTTPClient is the default BankLinkAPI implementation.
type BankLinkHTTPClient struct {
	http railHTTP
}

// NewBankLinkHTTPClient creates a bank-link client for the given endpoint.
func NewBankLinkHTTPClient(baseURL, apiKey string, timeout time.Duration) *BankLinkHTTPClient {
	return &BankLinkHTTPClient{http: newRailHTTP(baseURL, apiKey, timeout)}
}

// CreateLinkToken implements BankLinkAPI.
func (c *BankLinkHTTPClient) CreateLinkToken(ctx context.Context, companyID, userID string) (*LinkToken, error) {
	var resp LinkToken
	in := map[string]string{"company_id": companyID, "user_id": userID}
	if err := c.http.post(ctx, "/link/token/create", in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExchangePublicToken implements BankLinkAPI.
func (c *BankLinkHTTPClient) ExchangePublicToken(ctx context.Context, publicToken string) (*AccessToken, error) {
	var resp AccessToken
	in := map[string]string{"public_token": publicToken}
	if err := c.http.post(ctx, "/item/public_token/exchange", in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ACHHTTPClient is the default ACHAPI implementation.
type ACHHTTPClient struct {
	http railHTTP
}

// NewACHHTTPClient creates an ACH rail client for the given endpoint.
func NewACHHTTPClient(baseURL, apiKey string, timeout time.Duration) *ACHHTTPClient {
	return &ACHHTTPClient{http: newRailHTTP(baseURL, apiKey, timeout)}
}

// SubmitPayment implements ACHAPI.
func (c *ACHHTTPClient) SubmitPayment(ctx context.Context, req ACHSubmitRequest) (*ACHSubmitResponse, error) {
	var resp ACHSubmitResponse
	if err := c.http.post(ctx, "/transfers", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitRefund implements ACHAPI.
func (c *ACHHTTPClient) SubmitRefund(ctx context.Context, req ACHRefundRequest) (*ACHRefundResponse, error) {
	var resp ACHRefundResponse
	path := fmt.Sprintf("/transfers/%s/refunds", url.PathEscape(req.PaymentID))
	if err := c.http.post(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PaymentStatus implements ACHAPI.
func (c *ACHHTTPClient) PaymentStatus(ctx context.Context, paymentID string) (*ACHStatusResponse, error) {
	var resp ACHStatusResponse
	if err := c.http.get(ctx, "/transfers/"+url.PathEscape(paymentID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PlatformHTTPClient is the default PlatformAPI implementation.
type PlatformHTTPClient struct {
	http railHTTP
}

// NewPlatformHTTPClient creates a platform billing client for the given
// endpoint.
func NewPlatformHTTPClient(baseURL, apiKey string, timeout time.Duration) *PlatformHTTPClient {
	return &PlatformHTTPClient{http: newRailHTTP(baseURL, apiKey, timeout)}
}

// Charge implements PlatformAPI.
func (c *PlatformHTTPClient) Charge(ctx context.Context, req PlatformChargeRequest) (*PlatformChargeResponse, error) {
	var resp PlatformChargeResponse
	if err := c.http.post(ctx, "/charges", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refund implements PlatformAPI.
func (c *PlatformHTTPClient) Refund(ctx context.Context, req PlatformRefundRequest) (*PlatformRefundResponse, error) {
	var resp PlatformRefundResponse
	path := fmt.Sprintf("/charges/%s/refunds", url.PathEscape(req.ChargeID))
	if err := c.http.post(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChargeStatus implements PlatformAPI.
func (c *PlatformHTTPClient) ChargeStatus(ctx context.Context, chargeID string) (*PlatformChargeStatus, error) {
	var resp PlatformChargeStatus
	if err := c.http.get(ctx, "/charges/"+url.PathEscape(chargeID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
