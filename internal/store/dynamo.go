package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"storefront/internal/config"
)

const (
	batchGetSize      = 100
	maxBatchRetries   = 3
	batchRetryBackoff = 50 * time.Millisecond
)

// DynamoAPI is the subset of the DynamoDB client used by the store.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
}

// DynamoBackend serves tables from DynamoDB.
type DynamoBackend struct {
	client DynamoAPI
	log    *zap.Logger
}

// OpenDynamo builds a DynamoDB client from the store configuration.
// An endpoint override points the client at DynamoDB Local or LocalStack.
func OpenDynamo(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (*DynamoBackend, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	log.Info("dynamodb client configured",
		zap.String("region", cfg.Region),
		zap.String("endpoint", cfg.Endpoint),
	)
	return NewDynamoBackend(client, log), nil
}

// NewDynamoBackend wraps an existing client.
func NewDynamoBackend(client DynamoAPI, log *zap.Logger) *DynamoBackend {
	return &DynamoBackend{client: client, log: log}
}

func (b *DynamoBackend) Name() string { return "dynamodb" }

func (b *DynamoBackend) Table(schema Schema) (Table, error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	return &DynamoTable{
		client: b.client,
		schema: schema,
		log:    b.log.With(zap.String("table", schema.Name)),
	}, nil
}

func (b *DynamoBackend) Ping(ctx context.Context) error {
	_, err := b.client.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	return err
}

func (b *DynamoBackend) Close() error { return nil }

// DynamoTable implements Table on one DynamoDB table. Records are mapped
// with their json tags.
type DynamoTable struct {
	client DynamoAPI
	schema Schema
	log    *zap.Logger
}

func withJSONTags(o *attributevalue.EncoderOptions) { o.TagKey = "json" }

func fromJSONTags(o *attributevalue.DecoderOptions) { o.TagKey = "json" }

func (t *DynamoTable) Schema() Schema { return t.schema }

func (t *DynamoTable) key(k Key) map[string]types.AttributeValue {
	key := map[string]types.AttributeValue{
		t.schema.PartitionKey: &types.AttributeValueMemberS{Value: k.Partition},
	}
	if t.schema.SortKey != "" {
		key[t.schema.SortKey] = &types.AttributeValueMemberS{Value: k.Sort}
	}
	return key
}

func (t *DynamoTable) marshalItem(item any) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMapWithOptions(item, withJSONTags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	if _, ok := av[t.schema.PartitionKey].(*types.AttributeValueMemberS); !ok {
		return nil, fmt.Errorf("item is missing partition key %q", t.schema.PartitionKey)
	}
	if t.schema.SortKey != "" {
		if _, ok := av[t.schema.SortKey].(*types.AttributeValueMemberS); !ok {
			return nil, fmt.Errorf("item is missing sort key %q", t.schema.SortKey)
		}
	}
	return av, nil
}

func (t *DynamoTable) itemKey(av map[string]types.AttributeValue) Key {
	var key Key
	if s, ok := av[t.schema.PartitionKey].(*types.AttributeValueMemberS); ok {
		key.Partition = s.Value
	}
	if s, ok := av[t.schema.SortKey].(*types.AttributeValueMemberS); ok && t.schema.SortKey != "" {
		key.Sort = s.Value
	}
	return key
}

func (t *DynamoTable) Put(ctx context.Context, item any) error {
	av, err := t.marshalItem(item)
	if err != nil {
		return t.fail("put", err)
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.schema.Name),
		Item:      av,
	})
	if err != nil {
		return t.fail("put", err)
	}
	return nil
}

func (t *DynamoTable) Get(ctx context.Context, key Key, out any) (bool, error) {
	if err := t.schema.checkKey(key); err != nil {
		return false, t.fail("get", err)
	}
	res, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.schema.Name),
		Key:       t.key(key),
	})
	if err != nil {
		return false, t.fail("get", err)
	}
	if res.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMapWithOptions(res.Item, out, fromJSONTags); err != nil {
		return false, t.fail("get", err)
	}
	return true, nil
}

func (t *DynamoTable) BatchGet(ctx context.Context, keys []Key, out any) error {
	keys = dedupeKeys(keys)
	var items []map[string]types.AttributeValue

	for start := 0; start < len(keys); start += batchGetSize {
		end := min(start+batchGetSize, len(keys))
		request := make([]map[string]types.AttributeValue, 0, end-start)
		for _, k := range keys[start:end] {
			request = append(request, t.key(k))
		}

		pending := map[string]types.KeysAndAttributes{t.schema.Name: {Keys: request}}
		for attempt := 0; len(pending[t.schema.Name].Keys) > 0; attempt++ {
			if attempt > 0 {
				if attempt > maxBatchRetries {
					t.log.Warn("dropping unprocessed keys after retries",
						zap.Int("keys", len(pending[t.schema.Name].Keys)))
					break
				}
				if err := backoff(ctx, attempt); err != nil {
					return err
				}
			}
			res, err := t.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
			if err != nil {
				return t.fail("batch get", err)
			}
			items = append(items, res.Responses[t.schema.Name]...)
			pending = res.UnprocessedKeys
		}
	}

	if err := attributevalue.UnmarshalListOfMapsWithOptions(items, out, fromJSONTags); err != nil {
		return t.fail("batch get", err)
	}
	return nil
}

// Update applies assignments with a SET expression guarded by
// attribute_exists on the partition key.
func (t *DynamoTable) Update(ctx context.Context, key Key, assignments []Assignment, out any) error {
	if err := t.schema.checkKey(key); err != nil {
		return t.fail("update", err)
	}
	if err := t.schema.checkAssignments(assignments); err != nil {
		return t.fail("update", err)
	}

	var update expression.UpdateBuilder
	for _, a := range assignments {
		v, err := plainValue(a.Value)
		if err != nil {
			return t.fail("update", fmt.Errorf("failed to marshal %s: %w", a.Field, err))
		}
		update = update.Set(expression.Name(a.Field), expression.Value(v))
	}
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(t.schema.PartitionKey))).
		Build()
	if err != nil {
		return t.fail("update", fmt.Errorf("failed to build update expression: %w", err))
	}

	res, err := t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.schema.Name),
		Key:                       t.key(key),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrNotFound
		}
		return t.fail("update", err)
	}
	if out == nil {
		return nil
	}
	if err := attributevalue.UnmarshalMapWithOptions(res.Attributes, out, fromJSONTags); err != nil {
		return t.fail("update", err)
	}
	return nil
}

func (t *DynamoTable) Delete(ctx context.Context, key Key) error {
	if err := t.schema.checkKey(key); err != nil {
		return t.fail("delete", err)
	}
	_, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.schema.Name),
		Key:       t.key(key),
	})
	if err != nil {
		return t.fail("delete", err)
	}
	return nil
}

func (t *DynamoTable) Scan(ctx context.Context, out any) error {
	var items []map[string]types.AttributeValue
	input := &dynamodb.ScanInput{TableName: aws.String(t.schema.Name)}
	for {
		res, err := t.client.Scan(ctx, input)
		if err != nil {
			return t.fail("scan", err)
		}
		items = append(items, res.Items...)
		if len(res.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = res.LastEvaluatedKey
	}
	if err := attributevalue.UnmarshalListOfMapsWithOptions(items, out, fromJSONTags); err != nil {
		return t.fail("scan", err)
	}
	return nil
}

// Query uses the sort key in the key condition when the second attribute is
// the table's sort key, and a filter expression otherwise.
func (t *DynamoTable) Query(ctx context.Context, q Query, out any) error {
	attr, err := t.schema.keyAttribute(q)
	if err != nil {
		return t.fail("query", err)
	}

	keyCond := expression.Key(attr).Equal(expression.Value(q.Value))
	builder := expression.NewBuilder()
	if q.Field != "" {
		v, err := plainValue(q.FieldValue)
		if err != nil {
			return t.fail("query", fmt.Errorf("failed to marshal %s: %w", q.Field, err))
		}
		if q.Index == "" && q.Field == t.schema.SortKey {
			keyCond = keyCond.And(expression.Key(q.Field).Equal(expression.Value(v)))
		} else {
			builder = builder.WithFilter(expression.Name(q.Field).Equal(expression.Value(v)))
		}
	}
	expr, err := builder.WithKeyCondition(keyCond).Build()
	if err != nil {
		return t.fail("query", fmt.Errorf("failed to build key condition: %w", err))
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(t.schema.Name),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if q.Index != "" {
		input.IndexName = aws.String(q.Index)
	}

	var items []map[string]types.AttributeValue
	for {
		res, err := t.client.Query(ctx, input)
		if err != nil {
			return t.fail("query", err)
		}
		items = append(items, res.Items...)
		if len(res.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = res.LastEvaluatedKey
	}
	if err := attributevalue.UnmarshalListOfMapsWithOptions(items, out, fromJSONTags); err != nil {
		return t.fail("query", err)
	}
	return nil
}

// BatchWrite puts items in chunks of BatchSize. Unprocessed items are retried
// with backoff; whatever remains after maxBatchRetries is logged and dropped.
func (t *DynamoTable) BatchWrite(ctx context.Context, items []any) error {
	var requests []types.WriteRequest
	seen := make(map[string]int, len(items))
	for _, item := range items {
		av, err := t.marshalItem(item)
		if err != nil {
			return t.fail("batch write", err)
		}
		id := t.itemKey(av).id()
		if i, ok := seen[id]; ok {
			requests[i] = types.WriteRequest{PutRequest: &types.PutRequest{Item: av}}
			continue
		}
		seen[id] = len(requests)
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
	}

	for start := 0; start < len(requests); start += BatchSize {
		end := min(start+BatchSize, len(requests))
		pending := map[string][]types.WriteRequest{t.schema.Name: requests[start:end]}
		for attempt := 0; len(pending[t.schema.Name]) > 0; attempt++ {
			if attempt > 0 {
				if attempt > maxBatchRetries {
					t.log.Warn("dropping unprocessed items after retries",
						zap.Int("items", len(pending[t.schema.Name])))
					break
				}
				if err := backoff(ctx, attempt); err != nil {
					return err
				}
			}
			res, err := t.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return t.fail("batch write", err)
			}
			pending = res.UnprocessedItems
		}
	}
	return nil
}

func (t *DynamoTable) fail(op string, err error) error {
	t.log.Error("store operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("failed to %s in %s: %w", op, t.schema.Name, err)
}

func backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(batchRetryBackoff << (attempt - 1))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// plainValue reduces structs, maps and slices to their JSON shape so the
// expression builder encodes them under the same attribute names as Put.
func plainValue(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, int, int32, int64, float64, time.Time, []byte:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var plain any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, err
	}
	return plain, nil
}
