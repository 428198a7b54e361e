package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/storefront/internal/domain/cart"
)

// DynamoAPI is the subset of the DynamoDB client the cart store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoCartStore stores one item per cart, keyed by session_key.
// expires_at is meant to be configured as the table's TTL attribute.
type DynamoCartStore struct {
	client    DynamoAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// dynamoCart represents the DynamoDB item structure
type dynamoCart struct {
	SessionKey string `dynamodbav:"session_key"`
	Version    int    `dynamodbav:"version"`
	Epoch      uint64 `dynamodbav:"epoch"`
	Items      string `dynamodbav:"items"`
	UpdatedAt  string `dynamodbav:"updated_at"`
	ExpiresAt  int64  `dynamodbav:"expires_at"`
}

func NewDynamoCartStore(client DynamoAPI, tableName string, ttl time.Duration) *DynamoCartStore {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &DynamoCartStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (s *DynamoCartStore) Load(ctx context.Context, key string) (*cart.State, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"session_key": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if len(result.Item) == 0 {
		return nil, ErrCartNotFound
	}

	var item dynamoCart
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart: %w", err)
	}

	state := cart.State{Version: item.Version, Epoch: item.Epoch}
	if err := json.Unmarshal([]byte(item.Items), &state.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart items: %w", err)
	}
	return &state, nil
}

func (s *DynamoCartStore) Save(ctx context.Context, key string, state cart.State) error {
	items, err := json.Marshal(state.Items)
	if err != nil {
		return err
	}

	now := s.now()
	av, err := attributevalue.MarshalMap(dynamoCart{
		SessionKey: key,
		Version:    state.Version,
		Epoch:      state.Epoch,
		Items:      string(items),
		UpdatedAt:  now.UTC().Format(time.RFC3339Nano),
		ExpiresAt:  now.Add(s.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}

	// Conditional write so an older state never replaces a newer one
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(session_key) OR version <= :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.Itoa(state.Version)},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to put cart: %w", err)
	}
	return nil
}

func (s *DynamoCartStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"session_key": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}
