// Package credentials is the credential collaborator: it turns the opaque
// encrypted bundle stored on a processor config into the decrypted key/value
// credentials an adapter is constructed with. The engine treats credentials
// as already-decrypted strings; all key material handling lives here.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// Decryptor decrypts an encrypted credential bundle.
type Decryptor interface {
	Decrypt(ctx context.Context, ciphertext []byte) (map[string]string, error)
}

// kmsAPI is the subset of the KMS client the decryptor depends on.
type kmsAPI interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMS decrypts credential bundles with AWS KMS. The plaintext is a JSON
// object of string keys and values.
type KMS struct {
	keyARN string
	kms    kmsAPI
}

// NewKMS creates a KMS decryptor. keyARN may be empty when the ciphertext
// embeds its key id.
func NewKMS(keyARN string, client kmsAPI) *KMS {
	return &KMS{keyARN: keyARN, kms: client}
}

// NewKMSFromAWSConfig creates a KMS decryptor from an AWS configuration.
func NewKMSFromAWSConfig(keyARN string, cfg aws.Config) *KMS {
	return NewKMS(keyARN, kms.NewFromConfig(cfg))
}

// Decrypt implements Decryptor.
func (k *KMS) Decrypt(ctx context.Context, ciphertext []byte) (map[string]string, error) {
	if k == nil || k.kms == nil {
		return nil, fmt.Errorf("kms client is nil")
	}
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("credential ciphertext is empty")
	}

	input := &kms.DecryptInput{CiphertextBlob: ciphertext}
	if k.keyARN != "" {
		input.KeyId = aws.String(k.keyARN)
	}

	out, err := k.kms.Decrypt(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("kms Decrypt failed: %w", err)
	}

	var bundle map[string]string
	if err := json.Unmarshal(out.Plaintext, &bundle); err != nil {
		return nil, fmt.Errorf("credential bundle is not valid JSON: %w", err)
	}
	return bundle, nil
}

// Static is a fixed credential bundle used in tests and local development.
// Decrypt ignores the ciphertext and returns the map as-is.
type Static map[string]string

// Decrypt implements Decryptor.
func (s Static) Decrypt(_ context.Context, _ []byte) (map[string]string, error) {
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}
