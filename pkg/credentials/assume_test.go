package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountSourceBaseEnvironment(t *testing.T) {
	src, err := NewAccountSource(nil)
	require.NoError(t, err)

	d, err := src.Decryptor(context.Background(), "", "arn:aws:kms:us-east-1:111:key/abc")
	require.NoError(t, err)
	assert.NotNil(t, d)
}

func TestAccountSourceUnknownEnvironment(t *testing.T) {
	src, err := NewAccountSource(nil)
	require.NoError(t, err)

	_, err = src.Decryptor(context.Background(), "live", "arn:aws:kms:us-east-1:111:key/abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown credential environment")
}

func TestAccountSourceAssumedDecryptorIsCached(t *testing.T) {
	src, err := NewAccountSource(map[string]AccountConfig{
		"live": {
			RoleARN:    "arn:aws:iam::222:role/payments-live",
			ExternalID: "ext-1",
			Region:     "us-west-2",
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	first, err := src.Decryptor(ctx, "live", "arn:aws:kms:us-west-2:222:key/live")
	require.NoError(t, err)

	second, err := src.Decryptor(ctx, "live", "arn:aws:kms:us-west-2:222:key/live")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestAccountSourceAddAccountInvalidatesCache(t *testing.T) {
	src, err := NewAccountSource(map[string]AccountConfig{
		"sandbox": {
			RoleARN: "arn:aws:iam::333:role/payments-sandbox",
			Region:  "us-east-1",
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	first, err := src.Decryptor(ctx, "sandbox", "arn:aws:kms:us-east-1:333:key/sb")
	require.NoError(t, err)

	src.AddAccount("sandbox", AccountConfig{
		RoleARN:         "arn:aws:iam::444:role/payments-sandbox",
		Region:          "us-east-1",
		SessionDuration: 30 * time.Minute,
	})

	second, err := src.Decryptor(ctx, "sandbox", "arn:aws:kms:us-east-1:333:key/sb")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestBoundDecryptorSurfacesEnvironmentError(t *testing.T) {
	src, err := NewAccountSource(nil)
	require.NoError(t, err)

	bound := src.Bound("live", "arn:aws:kms:us-east-1:111:key/abc")
	_, err = bound.Decrypt(context.Background(), []byte("ciphertext"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown credential environment")
}
