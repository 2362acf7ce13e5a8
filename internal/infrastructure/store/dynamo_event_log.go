package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/example/cart-recovery/internal/model"
)

// DynamoEventLog appends cart events to DynamoDB. With Kinesis streaming
// enabled on the table, appended events reach the Lambda notifier without
// a Kafka broker.
type DynamoEventLog struct {
	client    *dynamodb.Client
	tableName string
}

// dynamoCartEvent is the DynamoDB item layout. session_id is the
// partition key and sort_key orders events within a session.
type dynamoCartEvent struct {
	SessionID string  `dynamodbav:"session_id"`
	SortKey   string  `dynamodbav:"sort_key"`
	ID        string  `dynamodbav:"id"`
	EventType string  `dynamodbav:"event_type"`
	ProductID string  `dynamodbav:"product_id,omitempty"`
	Quantity  int     `dynamodbav:"quantity"`
	Price     float64 `dynamodbav:"price"`
	Metadata  string  `dynamodbav:"metadata,omitempty"`
	CreatedAt string  `dynamodbav:"created_at"`
	GSI1PK    string  `dynamodbav:"gsi1pk"`
}

func NewDynamoEventLog(client *dynamodb.Client, tableName string) *DynamoEventLog {
	return &DynamoEventLog{client: client, tableName: tableName}
}

// AppendEvent stores one cart event. The sort key combines timestamp and
// event id so two events in the same nanosecond cannot collide.
func (dl *DynamoEventLog) AppendEvent(ctx context.Context, ev *model.CartEvent) error {
	item := dynamoCartEvent{
		SessionID: ev.SessionID,
		SortKey:   ev.CreatedAt.UTC().Format(time.RFC3339Nano) + "#" + ev.ID,
		ID:        ev.ID,
		EventType: ev.EventType,
		ProductID: ev.ProductID,
		Quantity:  ev.Quantity,
		Price:     ev.Price,
		Metadata:  string(ev.Metadata),
		CreatedAt: ev.CreatedAt.UTC().Format(time.RFC3339Nano),
		GSI1PK:    "CART_EVENTS",
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal cart event: %w", err)
	}

	_, err = dl.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(dl.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(session_id) AND attribute_not_exists(sort_key)"),
	})
	if err != nil {
		return fmt.Errorf("failed to put cart event: %w", err)
	}
	return nil
}

// ListEvents returns all events for a session in append order.
func (dl *DynamoEventLog) ListEvents(ctx context.Context, sessionID string) ([]model.CartEvent, error) {
	result, err := dl.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(dl.tableName),
		KeyConditionExpression: aws.String("session_id = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: sessionID},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	return unmarshalCartEvents(result.Items), nil
}

func unmarshalCartEvents(items []map[string]types.AttributeValue) []model.CartEvent {
	events := make([]model.CartEvent, 0, len(items))
	for _, item := range items {
		var de dynamoCartEvent
		if err := attributevalue.UnmarshalMap(item, &de); err != nil {
			continue
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, de.CreatedAt)
		ev := model.CartEvent{
			ID:        de.ID,
			SessionID: de.SessionID,
			EventType: de.EventType,
			ProductID: de.ProductID,
			Quantity:  de.Quantity,
			Price:     de.Price,
			CreatedAt: createdAt,
		}
		if de.Metadata != "" {
			ev.Metadata = json.RawMessage(de.Metadata)
		}
		events = append(events, ev)
	}
	return events
}
