package kinesis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/example/cart-recovery/internal/model"
)

// ConvertFromKinesisRecord converts a Kinesis record (DynamoDB Streams
// format) to a model.CartEvent. The DynamoDB Kinesis integration sends
// records in DynamoDB Streams format.
func ConvertFromKinesisRecord(record events.KinesisEventRecord) (*model.CartEvent, error) {
	var dynamoDBRecord events.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &dynamoDBRecord); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DynamoDB record: %w", err)
	}

	// Only INSERT records carry new cart events; the log is append-only.
	if dynamoDBRecord.EventName != "INSERT" {
		return nil, nil
	}

	return convertDynamoDBImage(dynamoDBRecord.Change.NewImage)
}

// ConvertFromDynamoDBStreamRecord converts a DynamoDB Stream record to
// a model.CartEvent, for direct stream consumers and tests.
func ConvertFromDynamoDBStreamRecord(record events.DynamoDBEventRecord) (*model.CartEvent, error) {
	if record.EventName != "INSERT" {
		return nil, nil
	}
	return convertDynamoDBImage(record.Change.NewImage)
}

func convertDynamoDBImage(image map[string]events.DynamoDBAttributeValue) (*model.CartEvent, error) {
	if image == nil {
		return nil, fmt.Errorf("DynamoDB image is nil")
	}

	ev := &model.CartEvent{}

	if v, ok := image["id"]; ok {
		ev.ID = v.String()
	}
	if v, ok := image["session_id"]; ok {
		ev.SessionID = v.String()
	}
	if v, ok := image["event_type"]; ok {
		ev.EventType = v.String()
	}
	if v, ok := image["product_id"]; ok {
		ev.ProductID = v.String()
	}
	if v, ok := image["quantity"]; ok {
		if n, err := strconv.Atoi(v.Number()); err == nil {
			ev.Quantity = n
		}
	}
	if v, ok := image["price"]; ok {
		if f, err := strconv.ParseFloat(v.Number(), 64); err == nil {
			ev.Price = f
		}
	}
	if v, ok := image["metadata"]; ok && v.String() != "" {
		ev.Metadata = json.RawMessage(v.String())
	}
	if v, ok := image["created_at"]; ok {
		if t, err := time.Parse(time.RFC3339Nano, v.String()); err == nil {
			ev.CreatedAt = t
		}
	}

	if ev.SessionID == "" || ev.EventType == "" {
		return nil, fmt.Errorf("record is missing session_id or event_type")
	}
	return ev, nil
}
