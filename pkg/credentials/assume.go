package credentials

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// AccountConfig holds the assume-role settings for one processor
// environment. Live and sandbox key material live in separate AWS accounts;
// the decryptor for a live config assumes into the live account.
type AccountConfig struct {
	RoleARN    string
	ExternalID string
	Region     string
	// SessionDuration defaults to one hour.
	SessionDuration time.Duration
}

// AccountSource builds per-environment KMS decryptors by assuming a role in
// the owning account. Decryptors are cached and refreshed shortly before the
// assumed-role session expires.
type AccountSource struct {
	baseConfig aws.Config
	accounts   map[string]AccountConfig
	cache      sync.Map // environment -> *accountEntry
	mu         sync.RWMutex
}

type accountEntry struct {
	decryptor *KMS
	expiry    time.Time
}

func (e *accountEntry) expired() bool {
	return time.Now().After(e.expiry)
}

// NewAccountSource creates a source over the base AWS configuration.
func NewAccountSource(accounts map[string]AccountConfig) (*AccountSource, error) {
	baseConfig, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load base AWS config: %w", err)
	}
	if accounts == nil {
		accounts = make(map[string]AccountConfig)
	}
	return &AccountSource{baseConfig: baseConfig, accounts: accounts}, nil
}

// AddAccount registers or replaces an environment's account configuration.
func (s *AccountSource) AddAccount(environment string, cfg AccountConfig) {
	s.mu.Lock()
	s.accounts[environment] = cfg
	s.mu.Unlock()
	s.cache.Delete(environment)
}

// Decryptor returns a KMS decryptor for the named environment ("live" or
// "sandbox"). An empty environment uses the base account without assuming a
// role.
func (s *AccountSource) Decryptor(ctx context.Context, environment, keyARN string) (*KMS, error) {
	if environment == "" {
		return NewKMSFromAWSConfig(keyARN, s.baseConfig), nil
	}

	if cached, ok := s.cache.Load(environment); ok {
		if entry, ok := cached.(*accountEntry); ok && !entry.expired() {
			return entry.decryptor, nil
		}
	}

	s.mu.RLock()
	account, ok := s.accounts[environment]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown credential environment: %s", environment)
	}

	return s.assume(ctx, environment, keyARN, account)
}

// Bound fixes the source to one environment and key so it can stand in
// wherever a plain Decryptor is expected.
func (s *AccountSource) Bound(environment, keyARN string) Decryptor {
	return boundDecryptor{source: s, environment: environment, keyARN: keyARN}
}

type boundDecryptor struct {
	source      *AccountSource
	environment string
	keyARN      string
}

// Decrypt implements Decryptor.
func (b boundDecryptor) Decrypt(ctx context.Context, ciphertext []byte) (map[string]string, error) {
	decryptor, err := b.source.Decryptor(ctx, b.environment, b.keyARN)
	if err != nil {
		return nil, err
	}
	return decryptor.Decrypt(ctx, ciphertext)
}

func (s *AccountSource) assume(ctx context.Context, environment, keyARN string, account AccountConfig) (*KMS, error) {
	stsClient := sts.NewFromConfig(s.baseConfig)

	sessionDuration := account.SessionDuration
	if sessionDuration == 0 {
		sessionDuration = time.Hour
	}

	creds := stscreds.NewAssumeRoleProvider(stsClient, account.RoleARN, func(o *stscreds.AssumeRoleOptions) {
		o.ExternalID = &account.ExternalID
		o.RoleSessionName = fmt.Sprintf("thorbis-payments-%s", environment)
		o.Duration = sessionDuration
	})

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(account.Region),
		config.WithCredentialsProvider(aws.NewCredentialsCache(creds)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to assume credential account %s: %w", environment, err)
	}

	decryptor := NewKMSFromAWSConfig(keyARN, awsConfig)

	// Refresh 5 minutes before the assumed session expires.
	s.cache.Store(environment, &accountEntry{
		decryptor: decryptor,
		expiry:    time.Now().Add(sessionDuration - 5*time.Minute),
	})

	return decryptor, nil
}
