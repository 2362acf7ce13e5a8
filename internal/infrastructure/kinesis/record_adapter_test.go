package kinesis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validImage() map[string]events.DynamoDBAttributeValue {
	return map[string]events.DynamoDBAttributeValue{
		"id":         events.NewStringAttribute("event-123"),
		"session_id": events.NewStringAttribute("sess-456"),
		"event_type": events.NewStringAttribute("add_item"),
		"product_id": events.NewStringAttribute("prod-789"),
		"quantity":   events.NewNumberAttribute("2"),
		"price":      events.NewNumberAttribute("19.99"),
		"metadata":   events.NewStringAttribute(`{"source":"web"}`),
		"created_at": events.NewStringAttribute("2025-06-15T10:30:00.123456789Z"),
	}
}

func TestConvertDynamoDBImage(t *testing.T) {
	t.Run("valid event", func(t *testing.T) {
		event, err := convertDynamoDBImage(validImage())

		require.NoError(t, err)
		require.NotNil(t, event)
		assert.Equal(t, "event-123", event.ID)
		assert.Equal(t, "sess-456", event.SessionID)
		assert.Equal(t, "add_item", event.EventType)
		assert.Equal(t, "prod-789", event.ProductID)
		assert.Equal(t, 2, event.Quantity)
		assert.Equal(t, 19.99, event.Price)
		assert.JSONEq(t, `{"source":"web"}`, string(event.Metadata))
		assert.Equal(t, time.Date(2025, 6, 15, 10, 30, 0, 123456789, time.UTC), event.CreatedAt)
	})

	t.Run("nil image", func(t *testing.T) {
		_, err := convertDynamoDBImage(nil)
		assert.Error(t, err)
	})

	t.Run("missing session_id", func(t *testing.T) {
		image := validImage()
		delete(image, "session_id")
		_, err := convertDynamoDBImage(image)
		assert.Error(t, err)
	})

	t.Run("missing event_type", func(t *testing.T) {
		image := validImage()
		delete(image, "event_type")
		_, err := convertDynamoDBImage(image)
		assert.Error(t, err)
	})
}

func TestConvertFromDynamoDBStreamRecord(t *testing.T) {
	t.Run("INSERT converts", func(t *testing.T) {
		record := events.DynamoDBEventRecord{
			EventName: "INSERT",
			Change: events.DynamoDBStreamRecord{
				NewImage: validImage(),
			},
		}

		event, err := ConvertFromDynamoDBStreamRecord(record)
		require.NoError(t, err)
		require.NotNil(t, event)
		assert.Equal(t, "event-123", event.ID)
	})

	t.Run("MODIFY returns nil", func(t *testing.T) {
		event, err := ConvertFromDynamoDBStreamRecord(events.DynamoDBEventRecord{EventName: "MODIFY"})
		require.NoError(t, err)
		assert.Nil(t, event)
	})

	t.Run("REMOVE returns nil", func(t *testing.T) {
		event, err := ConvertFromDynamoDBStreamRecord(events.DynamoDBEventRecord{EventName: "REMOVE"})
		require.NoError(t, err)
		assert.Nil(t, event)
	})
}

func TestConvertFromKinesisRecord(t *testing.T) {
	t.Run("INSERT record", func(t *testing.T) {
		streamRecord := events.DynamoDBEventRecord{
			EventName: "INSERT",
			Change: events.DynamoDBStreamRecord{
				NewImage: validImage(),
			},
		}
		data, err := json.Marshal(streamRecord)
		require.NoError(t, err)

		record := events.KinesisEventRecord{
			Kinesis: events.KinesisRecord{Data: data},
		}

		event, err := ConvertFromKinesisRecord(record)
		require.NoError(t, err)
		require.NotNil(t, event)
		assert.Equal(t, "sess-456", event.SessionID)
		assert.Equal(t, "add_item", event.EventType)
	})

	t.Run("invalid payload", func(t *testing.T) {
		record := events.KinesisEventRecord{
			Kinesis: events.KinesisRecord{Data: []byte("not json")},
		}

		_, err := ConvertFromKinesisRecord(record)
		assert.Error(t, err)
	})
}
