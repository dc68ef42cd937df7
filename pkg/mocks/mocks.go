// Package mocks provides testify mocks for the engine's interfaces.
//
// The most common use is substituting the store and an adapter when
// testing orchestration:
//
//	mockStore := new(mocks.MockStore)
//	mockStore.On("HasActiveBankAccount", mock.Anything, "co_1").Return(true, nil)
//
//	adapter := new(mocks.MockAdapter)
//	adapter.On("ProcessPayment", mock.Anything, mock.Anything).
//	    Return(types.PaymentResult{Success: true}, nil)
//
//	...
//	mockStore.AssertExpectations(t)
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/byronwade/thorbis-payments/pkg/ledger"
	"github.com/byronwade/thorbis-payments/pkg/types"
)

// MockStore mocks store.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ActiveConfigs(ctx context.Context, companyID string) ([]types.ProcessorConfig, error) {
	args := m.Called(ctx, companyID)
	configs, _ := args.Get(0).([]types.ProcessorConfig)
	return configs, args.Error(1)
}

func (m *MockStore) Config(ctx context.Context, companyID string, kind types.ProcessorKind) (*types.ProcessorConfig, error) {
	args := m.Called(ctx, companyID, kind)
	cfg, _ := args.Get(0).(*types.ProcessorConfig)
	return cfg, args.Error(1)
}

func (m *MockStore) TrustScore(ctx context.Context, companyID string) (*types.TrustScoreRecord, error) {
	args := m.Called(ctx, companyID)
	rec, _ := args.Get(0).(*types.TrustScoreRecord)
	return rec, args.Error(1)
}

func (m *MockStore) SaveTrustScore(ctx context.Context, rec *types.TrustScoreRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStore) HasActiveBankAccount(ctx context.Context, companyID string) (bool, error) {
	args := m.Called(ctx, companyID)
	return args.Bool(0), args.Error(1)
}

// MockAdapter mocks processor.Adapter.
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) Kind() types.ProcessorKind {
	args := m.Called()
	kind, _ := args.Get(0).(types.ProcessorKind)
	return kind
}

func (m *MockAdapter) ProcessPayment(ctx context.Context, req types.PaymentRequest) (types.PaymentResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(types.PaymentResult)
	return result, args.Error(1)
}

func (m *MockAdapter) RefundPayment(ctx context.Context, req types.RefundRequest) (types.RefundResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(types.RefundResult)
	return result, args.Error(1)
}

func (m *MockAdapter) GetPaymentStatus(ctx context.Context, transactionID string) (types.PaymentStatusInfo, error) {
	args := m.Called(ctx, transactionID)
	info, _ := args.Get(0).(types.PaymentStatusInfo)
	return info, args.Error(1)
}

func (m *MockAdapter) VerifyWebhook(payload []byte, signature string) bool {
	args := m.Called(payload, signature)
	return args.Bool(0)
}

func (m *MockAdapter) SupportedChannels() []types.Channel {
	args := m.Called()
	channels, _ := args.Get(0).([]types.Channel)
	return channels
}

// MockPublisher mocks ledger.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event ledger.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
