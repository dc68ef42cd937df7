package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	payerrors "github.com/byronwade/thorbis-payments/pkg/errors"
	"github.com/byronwade/thorbis-payments/pkg/types"
)

// dynamoAPI is the subset of the DynamoDB client the store depends on.
type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Tables names the three tables the store reads and writes.
type Tables struct {
	Configs      string `yaml:"configs"`
	TrustScores  string `yaml:"trust_scores"`
	BankAccounts string `yaml:"bank_accounts"`
}

// DefaultTables returns the default table names.
func DefaultTables() Tables {
	return Tables{
		Configs:      "company_payment_processors",
		TrustScores:  "company_trust_scores",
		BankAccounts: "company_bank_accounts",
	}
}

// Dynamo is the DynamoDB-backed Store. The configs table is keyed
// (company_id, kind), the trust table (company_id), and the bank accounts
// table (company_id, account_id).
type Dynamo struct {
	client dynamoAPI
	tables Tables
}

// NewDynamo creates a Store over the given DynamoDB client.
func NewDynamo(client dynamoAPI, tables Tables) *Dynamo {
	if tables.Configs == "" {
		tables = DefaultTables()
	}
	return &Dynamo{client: client, tables: tables}
}

// ActiveConfigs implements ConfigStore.
func (d *Dynamo) ActiveConfigs(ctx context.Context, companyID string) ([]types.ProcessorConfig, error) {
	out, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tables.Configs),
		KeyConditionExpression: aws.String("company_id = :c"),
		FilterExpression:       aws.String("active = :t"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":c": &ddbtypes.AttributeValueMemberS{Value: companyID},
			":t": &ddbtypes.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query processor configs: %w", err)
	}

	var configs []types.ProcessorConfig
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &configs); err != nil {
		return nil, fmt.Errorf("unmarshal processor configs: %w", err)
	}

	sort.Slice(configs, func(i, j int) bool {
		return configs[i].CreatedAt.After(configs[j].CreatedAt)
	})
	return configs, nil
}

// Config implements ConfigStore.
func (d *Dynamo) Config(ctx context.Context, companyID string, kind types.ProcessorKind) (*types.ProcessorConfig, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tables.Configs),
		Key: map[string]ddbtypes.AttributeValue{
			"company_id": &ddbtypes.AttributeValueMemberS{Value: companyID},
			"kind":       &ddbtypes.AttributeValueMemberS{Value: string(kind)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get processor config: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, payerrors.ErrConfigNotFound
	}

	var cfg types.ProcessorConfig
	if err := attributevalue.UnmarshalMap(out.Item, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal processor config: %w", err)
	}
	if !cfg.Active {
		return nil, payerrors.ErrConfigNotFound
	}
	return &cfg, nil
}

// TrustScore implements TrustStore.
func (d *Dynamo) TrustScore(ctx context.Context, companyID string) (*types.TrustScoreRecord, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tables.TrustScores),
		Key: map[string]ddbtypes.AttributeValue{
			"company_id": &ddbtypes.AttributeValueMemberS{Value: companyID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get trust score: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, payerrors.ErrTrustRecordNotFound
	}

	var rec types.TrustScoreRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal trust score: %w", err)
	}
	return &rec, nil
}

// SaveTrustScore implements TrustStore. The write is conditional on the
// stored version still matching rec.Version, so two payments completing
// close together for one company cannot silently overwrite each other's
// counter increments.
func (d *Dynamo) SaveTrustScore(ctx context.Context, rec *types.TrustScoreRecord) error {
	next := *rec
	next.Version = rec.Version + 1

	item, err := attributevalue.MarshalMap(next)
	if err != nil {
		return fmt.Errorf("marshal trust score: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(d.tables.TrustScores),
		Item:      item,
	}
	if rec.Version == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(company_id) OR version = :prev")
		input.ExpressionAttributeValues = map[string]ddbtypes.AttributeValue{
			":prev": &ddbtypes.AttributeValueMemberN{Value: "0"},
		}
	} else {
		input.ConditionExpression = aws.String("version = :prev")
		input.ExpressionAttributeValues = map[string]ddbtypes.AttributeValue{
			":prev": &ddbtypes.AttributeValueMemberN{Value: strconv.Itoa(rec.Version)},
		}
	}

	if _, err := d.client.PutItem(ctx, input); err != nil {
		var ccfe *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			return payerrors.ErrVersionConflict
		}
		return fmt.Errorf("save trust score: %w", err)
	}

	rec.Version = next.Version
	return nil
}

// HasActiveBankAccount implements BankAccounts.
func (d *Dynamo) HasActiveBankAccount(ctx context.Context, companyID string) (bool, error) {
	out, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tables.BankAccounts),
		KeyConditionExpression: aws.String("company_id = :c"),
		FilterExpression:       aws.String("active = :t"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":c": &ddbtypes.AttributeValueMemberS{Value: companyID},
			":t": &ddbtypes.AttributeValueMemberBOOL{Value: true},
		},
		Select: ddbtypes.SelectCount,
	})
	if err != nil {
		return false, fmt.Errorf("query bank accounts: %w", err)
	}
	return out.Count > 0, nil
}
