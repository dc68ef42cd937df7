package processor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardHTTPClientAuthorize(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	var gotBody CardAuthorizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(CardAuthorizeResponse{
			PSPReference: "psp_1",
			ResultCode:   "Authorised",
		})
	}))
	defer srv.Close()

	client := NewCardHTTPClient(srv.URL, "sk_test", 5*time.Second)
	resp, err := client.Authorize(context.Background(), CardAuthorizeRequest{
		MerchantAccount: "ma_1",
		Amount:          2_500,
		Currency:        "USD",
		Reference:       "inv_1",
	})
	require.NoError(t, err)

	assert.Equal(t, "/payments", gotPath)
	assert.Equal(t, "Bearer sk_test", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "ma_1", gotBody.MerchantAccount)
	assert.Equal(t, int64(2_500), gotBody.Amount)
	assert.Equal(t, "psp_1", resp.PSPReference)
	assert.Equal(t, "Authorised", resp.ResultCode)
}

func TestCardHTTPClientRefundPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(CardRefundResponse{})
	}))
	defer srv.Close()

	client := NewCardHTTPClient(srv.URL, "sk_test", 5*time.Second)
	_, err := client.Refund(context.Background(), CardRefundRequest{PSPReference: "psp_9"})
	require.NoError(t, err)
	assert.Equal(t, "/payments/psp_9/refunds", gotPath)
}

func TestRailHTTPNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"service unavailable"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewCardHTTPClient(srv.URL, "sk_test", 5*time.Second)
	_, err := client.Authorize(context.Background(), CardAuthorizeRequest{Amount: 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestRailHTTPTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewACHHTTPClient(srv.URL, "sk_test", time.Second)
	_, err := client.SubmitPayment(context.Background(), ACHSubmitRequest{AmountDollars: 10})
	require.Error(t, err)
}

func TestRailHTTPContextCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server starts its background read and can
		// observe the client closing the connection; otherwise r.Context()
		// is never canceled and the test deadlocks.
		io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	client := NewPlatformHTTPClient(srv.URL, "sk_test", 10*time.Second)
	_, err := client.Charge(ctx, PlatformChargeRequest{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestACHHTTPClientPaths(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		json.NewEncoder(w).Encode(ACHStatusResponse{PaymentID: "pay_1", Status: "processed"})
	}))
	defer srv.Close()

	client := NewACHHTTPClient(srv.URL, "sk_test", 5*time.Second)
	status, err := client.PaymentStatus(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "/transfers/pay_1", gotPath)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "processed", status.Status)
}

func TestBankLinkHTTPClientTokenFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/link/token/create":
			var in map[string]string
			json.NewDecoder(r.Body).Decode(&in)
			assert.Equal(t, "co_1", in["company_id"])
			json.NewEncoder(w).Encode(LinkToken{Token: "link-tok"})
		case "/item/public_token/exchange":
			var in map[string]string
			json.NewDecoder(r.Body).Decode(&in)
			assert.Equal(t, "public-tok", in["public_token"])
			json.NewEncoder(w).Encode(AccessToken{AccessToken: "access-tok", ItemID: "item_1"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewBankLinkHTTPClient(srv.URL, "sk_test", 5*time.Second)
	ctx := context.Background()

	link, err := client.CreateLinkToken(ctx, "co_1", "user_1")
	require.NoError(t, err)
	assert.Equal(t, "link-tok", link.Token)

	access, err := client.ExchangePublicToken(ctx, "public-tok")
	require.NoError(t, err)
	assert.Equal(t, "access-tok", access.AccessToken)
	assert.Equal(t, "item_1", access.ItemID)
}
