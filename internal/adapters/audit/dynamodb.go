package audit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the journal uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore persists entries in a DynamoDB table keyed by "id".
type DynamoStore struct {
	db    DynamoAPI
	table string
}

// OpenDynamo loads the default AWS configuration and returns a DynamoStore.
func OpenDynamo(ctx context.Context, table string) (*DynamoStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load AWS config: %w", ErrStore, err)
	}
	return NewDynamoStore(dynamodb.NewFromConfig(awsCfg), table), nil
}

// NewDynamoStore wraps an existing client.
func NewDynamoStore(db DynamoAPI, table string) *DynamoStore {
	if table == "" {
		table = defaultTable
	}
	return &DynamoStore{db: db, table: table}
}

// Save implements Store.
func (s *DynamoStore) Save(ctx context.Context, e Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	if e.Status == "" {
		e.Status = StatusReceived
	}

	item := map[string]types.AttributeValue{
		"id":          &types.AttributeValueMemberS{Value: e.ID},
		"path":        &types.AttributeValueMemberS{Value: e.Path},
		"status":      &types.AttributeValueMemberS{Value: string(e.Status)},
		"received_at": &types.AttributeValueMemberS{Value: e.ReceivedAt.UTC().Format(time.RFC3339Nano)},
	}
	if len(e.Payload) > 0 {
		item["payload"] = &types.AttributeValueMemberB{Value: e.Payload}
	}

	_, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return ErrDuplicate
		}
		return fmt.Errorf("%w: dynamodb put: %w", ErrStore, err)
	}
	return nil
}

// Resolve implements Store.
func (s *DynamoStore) Resolve(ctx context.Context, id string, r Resolution) error {
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:    aws.String("SET #st = :st, #kd = :kind, #ac = :ac, upstream_status = :us, #ref = :ref, #err = :err, resolved_at = :at"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeNames: map[string]string{
			"#st":  "status",
			"#kd":  "kind",
			"#ac":  "action",
			"#ref": "reference",
			"#err": "error",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":st":   &types.AttributeValueMemberS{Value: string(StatusResolved)},
			":kind": &types.AttributeValueMemberS{Value: r.Kind},
			":ac":   &types.AttributeValueMemberS{Value: r.Action},
			":us":   &types.AttributeValueMemberN{Value: strconv.Itoa(r.UpstreamStatus)},
			":ref":  &types.AttributeValueMemberS{Value: r.Reference},
			":err":  &types.AttributeValueMemberS{Value: r.Error},
			":at":   &types.AttributeValueMemberS{Value: r.ResolvedAt.UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: dynamodb update: %w", ErrStore, err)
	}
	return nil
}

// Get implements Store.
func (s *DynamoStore) Get(ctx context.Context, id string) (Entry, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Entry{}, fmt.Errorf("%w: dynamodb get: %w", ErrStore, err)
	}
	if len(out.Item) == 0 {
		return Entry{}, ErrNotFound
	}
	return entryFromItem(out.Item), nil
}

// Pending implements Store. It scans the whole table.
func (s *DynamoStore) Pending(ctx context.Context, limit int) ([]Entry, error) {
	in := &dynamodb.ScanInput{
		TableName:                aws.String(s.table),
		FilterExpression:         aws.String("#st = :st"),
		ExpressionAttributeNames: map[string]string{"#st": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":st": &types.AttributeValueMemberS{Value: string(StatusReceived)},
		},
	}
	var out []Entry
	for {
		page, err := s.db.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("%w: dynamodb scan: %w", ErrStore, err)
		}
		for _, item := range page.Items {
			out = append(out, entryFromItem(item))
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = page.LastEvaluatedKey
	}
	return oldestFirst(out, limit), nil
}

// Close implements Store.
func (s *DynamoStore) Close() error { return nil }

func entryFromItem(item map[string]types.AttributeValue) Entry {
	e := Entry{
		ID:        attrString(item, "id"),
		Path:      attrString(item, "path"),
		Status:    Status(attrString(item, "status")),
		Kind:      attrString(item, "kind"),
		Action:    attrString(item, "action"),
		Reference: attrString(item, "reference"),
		Error:     attrString(item, "error"),
	}
	if b, ok := item["payload"].(*types.AttributeValueMemberB); ok {
		e.Payload = b.Value
	}
	if n, ok := item["upstream_status"].(*types.AttributeValueMemberN); ok {
		e.UpstreamStatus, _ = strconv.Atoi(n.Value)
	}
	if t, err := time.Parse(time.RFC3339Nano, attrString(item, "received_at")); err == nil {
		e.ReceivedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, attrString(item, "resolved_at")); err == nil {
		e.ResolvedAt = &t
	}
	return e
}

func attrString(item map[string]types.AttributeValue, key string) string {
	if s, ok := item[key].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}
