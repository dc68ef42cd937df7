package payments

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/byronwade/thorbis-payments/pkg/store"
)

// Duration wraps time.Duration so config values can be written as
// "30s" or "500ms" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// RailConfig is the transport endpoint for a single processor family.
// The API key authenticates the platform; per-company identifiers such
// as merchant accounts live in the encrypted credential bundle.
type RailConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type RailsConfig struct {
	Card     RailConfig `yaml:"card"`
	BankLink RailConfig `yaml:"bank_link"`
	ACH      RailConfig `yaml:"ach"`
	Platform RailConfig `yaml:"platform"`
}

type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type WebhookConfig struct {
	ArchiveBucket string `yaml:"archive_bucket"`
}

// Config holds everything the engine needs to wire itself to AWS and
// the processor rails. Zero values fall back to DefaultConfig.
type Config struct {
	Region         string       `yaml:"region"`
	DynamoEndpoint string       `yaml:"dynamo_endpoint"`
	Tables         store.Tables `yaml:"tables"`
	KMSKeyARN      string       `yaml:"kms_key_arn"`

	// ProcessorTimeout bounds each outbound rail call.
	ProcessorTimeout Duration `yaml:"processor_timeout"`
	// RetryAttempts is the number of extra attempts after a transport
	// failure. Declines are never retried.
	RetryAttempts int      `yaml:"retry_attempts"`
	RetryBackoff  Duration `yaml:"retry_backoff"`

	// CountTransportFailures treats processor outages as failed
	// payments for trust scoring when true. Off by default so an
	// outage does not depress company scores.
	CountTransportFailures bool `yaml:"count_transport_failures"`

	// PlatformCeiling is the amount above which platform billing
	// charges raise a warning signal, in minor units.
	PlatformCeiling int64 `yaml:"platform_ceiling"`

	Rails   RailsConfig   `yaml:"rails"`
	Redis   RedisConfig   `yaml:"redis"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Webhook WebhookConfig `yaml:"webhook"`
}

func DefaultConfig() Config {
	return Config{
		Region:           "us-east-1",
		Tables:           store.DefaultTables(),
		ProcessorTimeout: Duration(30 * time.Second),
		RetryAttempts:    2,
		RetryBackoff:     Duration(500 * time.Millisecond),
	}
}

// LoadConfig reads a YAML config file over DefaultConfig, so the file
// only needs to name the settings it changes.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Region == "" {
		c.Region = def.Region
	}
	if c.Tables.Configs == "" {
		c.Tables = def.Tables
	}
	if c.ProcessorTimeout <= 0 {
		c.ProcessorTimeout = def.ProcessorTimeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = def.RetryBackoff
	}
	return c
}
