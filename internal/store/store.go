/*
Package store wraps the wide-column Event Store (DynamoDB) behind the small
adapter surface the ingestion core needs: batched put, atomic numeric/set
ADD updates, and paginated range queries under a partition. Every method
takes a context and is safe for concurrent use — the underlying SDK client
is cached for the process lifetime the way the teacher's redisclient.Client
wraps a single long-lived connection.
*/
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is a single wide-column row, keyed by attribute name.
type Item map[string]types.AttributeValue

// Key identifies a row by its primary key.
type Key struct {
	PK string
	SK string
}

const batchPutLimit = 25

// Client is the adapter used by the ingestion controller, rollup writer,
// journey tracker, and cache builder.
type Client struct {
	ddb *dynamodb.Client
}

var (
	singleton *Client
	initOnce  sync.Once
	initErr   error
)

// Default lazily builds and caches the process-wide Client, mirroring the
// teacher's package-level client caches (§5/§9: "constructed lazily at
// first use and cached for the lifetime of the process").
func Default(ctx context.Context) (*Client, error) {
	initOnce.Do(func() {
		singleton, initErr = New(ctx)
	})
	return singleton, initErr
}

// New builds a Client from the default AWS config chain.
func New(ctx context.Context) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Client{ddb: dynamodb.NewFromConfig(cfg)}, nil
}

// PutItem writes a single row.
func (c *Client) PutItem(ctx context.Context, table string, item Item) error {
	_, err := c.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &table,
		Item:      item,
	})
	return err
}

// BatchPutItems writes items in batches of up to 25, retrying any
// unprocessed items the service returns. Returns the number of items
// written before a fatal (non-retryable) error, if any.
func (c *Client) BatchPutItems(ctx context.Context, table string, items []Item) (int, error) {
	written := 0
	for start := 0; start < len(items); start += batchPutLimit {
		end := start + batchPutLimit
		if end > len(items) {
			end = len(items)
		}
		n, err := c.batchPutChunk(ctx, table, items[start:end])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (c *Client) batchPutChunk(ctx context.Context, table string, chunk []Item) (int, error) {
	reqs := make([]types.WriteRequest, 0, len(chunk))
	for _, item := range chunk {
		reqs = append(reqs, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		})
	}

	written := 0
	batchInput := map[string][]types.WriteRequest{table: reqs}

	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts && len(batchInput[table]) > 0; attempt++ {
		out, err := c.ddb.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: batchInput,
		})
		if err != nil {
			return written, err
		}
		written += len(batchInput[table]) - len(out.UnprocessedItems[table])
		if len(out.UnprocessedItems) == 0 {
			return written, nil
		}
		batchInput = out.UnprocessedItems
		time.Sleep(backoff(attempt))
	}

	if len(batchInput[table]) > 0 {
		return written, fmt.Errorf("batch put: %d items unprocessed after retries", len(batchInput[table]))
	}
	return written, nil
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * 50 * time.Millisecond
}

// NumericAdds is a set of atomic integer increments, keyed by attribute name.
type NumericAdds map[string]int64

// StringSetAdds is a set of atomic string-set unions, keyed by attribute name.
type StringSetAdds map[string][]string

// UpdateAdd issues an atomic ADD update on numeric counters and/or string
// sets, re-stamping ttl on every call (§4.5 Phase 2). A row that does not
// exist yet is created implicitly by DynamoDB's ADD semantics.
func (c *Client) UpdateAdd(ctx context.Context, table string, key Key, nums NumericAdds, sets StringSetAdds, ttl time.Time) error {
	if len(nums) == 0 && len(sets) == 0 {
		return errors.New("update add: no counters supplied")
	}

	update := expression.Set(expression.Name("ttl"), expression.Value(ttl.Unix()))
	for name, delta := range nums {
		update = update.Add(expression.Name(name), expression.Value(delta))
	}
	for name, values := range sets {
		if len(values) == 0 {
			continue
		}
		update = update.Add(expression.Name(name), expression.Value(toStringSet(values)))
	}

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("build update expression: %w", err)
	}

	_, err = c.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &table,
		Key: Item{
			"PK": stringAttr(key.PK),
			"SK": stringAttr(key.SK),
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return err
}

// QueryPage is one page of a range query, with the continuation token (if
// any) needed to fetch the next page.
type QueryPage struct {
	Items       []Item
	NextToken   map[string]types.AttributeValue
	HasNextPage bool
}

// QueryOpts configures a partition range query.
type QueryOpts struct {
	IndexName    string // empty for the base table
	PKAttr       string
	PKValue      string
	SKAttr       string
	SKBeginsWith string
	ExclusiveStartKey map[string]types.AttributeValue
}

// QueryPartitionPage runs one page of a begins_with range query under a
// partition key, against the base table or a named GSI.
func (c *Client) QueryPartitionPage(ctx context.Context, table string, opts QueryOpts) (QueryPage, error) {
	keyCond := expression.Key(opts.PKAttr).Equal(expression.Value(opts.PKValue))
	if opts.SKBeginsWith != "" {
		keyCond = keyCond.And(expression.Key(opts.SKAttr).BeginsWith(opts.SKBeginsWith))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return QueryPage{}, fmt.Errorf("build query expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 &table,
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ExclusiveStartKey:         opts.ExclusiveStartKey,
	}
	if opts.IndexName != "" {
		input.IndexName = &opts.IndexName
	}

	out, err := c.ddb.Query(ctx, input)
	if err != nil {
		return QueryPage{}, err
	}

	items := make([]Item, 0, len(out.Items))
	for _, it := range out.Items {
		items = append(items, it)
	}

	return QueryPage{
		Items:       items,
		NextToken:   out.LastEvaluatedKey,
		HasNextPage: len(out.LastEvaluatedKey) > 0,
	}, nil
}

// QueryAllPartition drains every page of a begins_with range query,
// following the continuation token the way the cache builder's original
// Python handler follows LastEvaluatedKey.
func (c *Client) QueryAllPartition(ctx context.Context, table string, opts QueryOpts) ([]Item, error) {
	var all []Item
	for {
		page, err := c.QueryPartitionPage(ctx, table, opts)
		if err != nil {
			return all, err
		}
		all = append(all, page.Items...)
		if !page.HasNextPage {
			return all, nil
		}
		opts.ExclusiveStartKey = page.NextToken
	}
}

// GetItem fetches a single row by key. Returns a nil Item (no error) if the
// row does not exist.
func (c *Client) GetItem(ctx context.Context, table string, key Key) (Item, error) {
	out, err := c.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &table,
		Key: Item{
			"PK": stringAttr(key.PK),
			"SK": stringAttr(key.SK),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return out.Item, nil
}

func stringAttr(s string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: s}
}

func toStringSet(values []string) types.AttributeValue {
	return &types.AttributeValueMemberSS{Value: values}
}

// GetNumber reads a numeric attribute from an Item, returning 0 if absent or
// of the wrong type.
func GetNumber(item Item, name string) int64 {
	av, ok := item[name]
	if !ok {
		return 0
	}
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// GetStringSet reads a string-set attribute from an Item, returning nil if
// absent or of the wrong type.
func GetStringSet(item Item, name string) []string {
	av, ok := item[name]
	if !ok {
		return nil
	}
	ss, ok := av.(*types.AttributeValueMemberSS)
	if !ok {
		return nil
	}
	return ss.Value
}

// GetString reads a string attribute from an Item, returning "" if absent or
// of the wrong type.
func GetString(item Item, name string) string {
	av, ok := item[name]
	if !ok {
		return ""
	}
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return s.Value
}
