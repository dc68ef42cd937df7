package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payerrors "github.com/byronwade/thorbis-payments/pkg/errors"
	"github.com/byronwade/thorbis-payments/pkg/types"
)

type stubACHAPI struct {
	submit     *ACHSubmitResponse
	refund     *ACHRefundResponse
	status     *ACHStatusResponse
	err        error
	lastSubmit ACHSubmitRequest
	lastRefund ACHRefundRequest
}

func (s *stubACHAPI) SubmitPayment(_ context.Context, req ACHSubmitRequest) (*ACHSubmitResponse, error) {
	s.lastSubmit = req
	return s.submit, s.err
}

func (s *stubACHAPI) SubmitRefund(_ context.Context, req ACHRefundRequest) (*ACHRefundResponse, error) {
	s.lastRefund = req
	return s.refund, s.err
}

func (s *stubACHAPI) PaymentStatus(_ context.Context, _ string) (*ACHStatusResponse, error) {
	return s.status, s.err
}

func achConfig() types.ProcessorConfig {
	return types.ProcessorConfig{
		CompanyID: "co_1",
		Kind:      types.KindACHRail,
		Credentials: map[string]string{
			"source_id":      "src_123",
			"webhook_secret": "whsec_ach",
		},
	}
}

func TestACHUnitConversion(t *testing.T) {
	// The wire speaks dollars; everything else speaks cents.
	assert.Equal(t, 125.50, dollarsFromMinor(12_550))
	assert.Equal(t, int64(12_550), minorFromDollars(125.50))
	assert.Equal(t, int64(1), minorFromDollars(0.01))
	assert.Equal(t, int64(10), minorFromDollars(0.1))
	// Round-trips survive float representation.
	for _, cents := range []int64{1, 99, 100, 12_345, 1_000_000} {
		assert.Equal(t, cents, minorFromDollars(dollarsFromMinor(cents)))
	}
}

func TestACHProcessPayment(t *testing.T) {
	t.Run("AcceptedIsProcessingNotSucceeded", func(t *testing.T) {
		api := &stubACHAPI{submit: &ACHSubmitResponse{
			PaymentID: "ach_1",
			Status:    "pending",
		}}
		rail := NewACHRail(achConfig(), api)

		result, err := rail.ProcessPayment(context.Background(), types.PaymentRequest{
			Amount:  12_550,
			Channel: types.ChannelACH,
		})
		require.NoError(t, err)
		assert.True(t, result.Success)
		// ACH clears over days; submission never claims success.
		assert.Equal(t, types.PaymentStatusProcessing, result.Status)
		assert.Equal(t, "ach_1", result.TransactionID)
		assert.Equal(t, 125.50, api.lastSubmit.AmountDollars)
		assert.Equal(t, "src_123", api.lastSubmit.SourceID)
	})

	t.Run("RejectedAtSubmission", func(t *testing.T) {
		api := &stubACHAPI{submit: &ACHSubmitResponse{
			Status:       "rejected",
			ErrorCode:    "R03",
			ErrorMessage: "no account",
		}}
		rail := NewACHRail(achConfig(), api)

		result, err := rail.ProcessPayment(context.Background(), types.PaymentRequest{Amount: 5_000})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, types.PaymentStatusFailed, result.Status)
		assert.Equal(t, "R03", result.FailureCode)
	})

	t.Run("TransportErrorIsRetryable", func(t *testing.T) {
		api := &stubACHAPI{err: errors.New("timeout")}
		rail := NewACHRail(achConfig(), api)

		_, err := rail.ProcessPayment(context.Background(), types.PaymentRequest{Amount: 5_000})
		require.Error(t, err)
		assert.True(t, payerrors.IsRetryable(err))
	})
}

func TestACHRefundConvertsUnits(t *testing.T) {
	api := &stubACHAPI{refund: &ACHRefundResponse{
		RefundID: "rf_1",
		Status:   "pending",
	}}
	rail := NewACHRail(achConfig(), api)

	result, err := rail.RefundPayment(context.Background(), types.RefundRequest{
		TransactionID: "ach_1",
		Amount:        7_525,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, types.RefundStatusProcessing, result.Status)
	assert.Equal(t, 75.25, api.lastRefund.AmountDollars)
}

func TestACHGetPaymentStatus(t *testing.T) {
	t.Run("ProcessedMeansSucceeded", func(t *testing.T) {
		api := &stubACHAPI{status: &ACHStatusResponse{
			PaymentID:     "ach_1",
			Status:        "processed",
			AmountDollars: 125.50,
		}}
		rail := NewACHRail(achConfig(), api)

		info, err := rail.GetPaymentStatus(context.Background(), "ach_1")
		require.NoError(t, err)
		assert.Equal(t, types.PaymentStatusSucceeded, info.Status)
		assert.Equal(t, int64(12_550), info.Amount)
	})

	t.Run("AnythingElseStillProcessing", func(t *testing.T) {
		for _, status := range []string{"pending", "submitted", "clearing", ""} {
			api := &stubACHAPI{status: &ACHStatusResponse{Status: status}}
			rail := NewACHRail(achConfig(), api)

			info, err := rail.GetPaymentStatus(context.Background(), "ach_1")
			require.NoError(t, err, status)
			assert.Equal(t, types.PaymentStatusProcessing, info.Status, "status %q", status)
		}
	})
}

func TestACHChannels(t *testing.T) {
	rail := NewACHRail(achConfig(), &stubACHAPI{})
	assert.ElementsMatch(t,
		[]types.Channel{types.ChannelACH, types.ChannelCheck, types.ChannelWire},
		rail.SupportedChannels())
}
