// Package session provides AWS session management for the engine's storage,
// credential, and archival collaborators.
package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// configLoadFunc is a variable to allow mocking config.LoadDefaultConfig in tests
var configLoadFunc = config.LoadDefaultConfig

// Config holds the AWS-facing configuration.
type Config struct {
	CredentialsProvider aws.CredentialsProvider
	Region              string
	Endpoint            string // endpoint override, for local stacks
	AWSConfigOptions    []func(*config.LoadOptions) error
	MaxRetries          int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Region:     "us-east-1",
		MaxRetries: 3,
	}
}

// Session manages the AWS configuration and the service clients built on it.
type Session struct {
	config    *Config
	awsConfig aws.Config
	dynamo    *dynamodb.Client
}

// NewSession creates a new session with the given configuration.
func NewSession(cfg *Config) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	options := make([]func(*config.LoadOptions) error, 0, len(cfg.AWSConfigOptions)+4)
	if cfg.Region != "" {
		options = append(options, config.WithRegion(cfg.Region))
	}
	if cfg.CredentialsProvider != nil {
		options = append(options, config.WithCredentialsProvider(cfg.CredentialsProvider))
	}

	maxAttempts := cfg.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	options = append(options, config.WithRetryMode(aws.RetryModeStandard))
	options = append(options, config.WithRetryMaxAttempts(maxAttempts))
	options = append(options, config.WithHTTPClient(&http.Client{}))
	options = append(options, cfg.AWSConfigOptions...)

	awsConfig, err := configLoadFunc(context.Background(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if awsConfig.Retryer == nil {
		awsConfig.Retryer = func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = maxAttempts
			})
		}
	}

	dynamoClient := dynamodb.NewFromConfig(awsConfig, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &Session{
		config:    cfg,
		awsConfig: awsConfig,
		dynamo:    dynamoClient,
	}, nil
}

// DynamoClient returns the DynamoDB client.
func (s *Session) DynamoClient() (*dynamodb.Client, error) {
	if s == nil || s.dynamo == nil {
		return nil, fmt.Errorf("dynamodb client is nil")
	}
	return s.dynamo, nil
}

// KMSClient returns a KMS client on the session's AWS configuration.
func (s *Session) KMSClient() *kms.Client {
	return kms.NewFromConfig(s.awsConfig)
}

// S3Client returns an S3 client on the session's AWS configuration.
func (s *Session) S3Client() *s3.Client {
	return s3.NewFromConfig(s.awsConfig)
}

// Config returns the session configuration.
func (s *Session) Config() *Config {
	return s.config
}

// AWSConfig returns the AWS configuration.
func (s *Session) AWSConfig() aws.Config {
	return s.awsConfig
}
