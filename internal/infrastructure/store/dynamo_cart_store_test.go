package store

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo evaluates the single condition expression the cart store uses.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	puts  []*dynamodb.PutItemInput
	err   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(key map[string]types.AttributeValue) string {
	return key["session_key"].(*types.AttributeValueMemberS).Value
}

func numberOf(t types.AttributeValue) int {
	n, _ := strconv.Atoi(t.(*types.AttributeValueMemberN).Value)
	return n
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.puts = append(f.puts, in)
	key := keyOf(in.Item)
	if current, ok := f.items[key]; ok {
		if numberOf(current["version"]) > numberOf(in.ExpressionAttributeValues[":v"]) {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional request failed")}
		}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoCartStore_Contract(t *testing.T) {
	exerciseCartStore(t, NewDynamoCartStore(newFakeDynamo(), "carts", time.Hour))
}

func TestDynamoCartStore_Save_WritesItem(t *testing.T) {
	fake := newFakeDynamo()
	s := NewDynamoCartStore(fake, "carts", time.Hour)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(context.Background(), "k", sampleState(7)))

	require.Len(t, fake.puts, 1)
	put := fake.puts[0]
	assert.Equal(t, "carts", aws.ToString(put.TableName))
	assert.Equal(t, "attribute_not_exists(session_key) OR version <= :v", aws.ToString(put.ConditionExpression))
	assert.Equal(t, "7", put.Item["version"].(*types.AttributeValueMemberN).Value)
	assert.Equal(t, strconv.FormatInt(now.Add(time.Hour).Unix(), 10), put.Item["expires_at"].(*types.AttributeValueMemberN).Value)
}

func TestDynamoCartStore_ClientError(t *testing.T) {
	fake := newFakeDynamo()
	fake.err = errors.New("throttled")
	s := NewDynamoCartStore(fake, "carts", time.Hour)

	_, err := s.Load(context.Background(), "k")
	assert.ErrorContains(t, err, "throttled")
	assert.NotErrorIs(t, err, ErrCartNotFound)

	err = s.Save(context.Background(), "k", sampleState(1))
	assert.ErrorContains(t, err, "throttled")
	assert.NotErrorIs(t, err, ErrVersionConflict)
}
