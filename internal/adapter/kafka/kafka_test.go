package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-event-planner/internal/domain"
	"github.com/couchcryptid/storm-event-planner/internal/pipeline"
	"github.com/couchcryptid/storm-event-planner/internal/planner"
)

func TestMapMessage(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("req-1"),
		Value:     []byte(`{"query":"flea markets"}`),
		Topic:     "recommendation-requests",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("watch")},
		},
	}

	m := mapMessage(msg)

	assert.Equal(t, []byte("req-1"), m.Key)
	assert.JSONEq(t, `{"query":"flea markets"}`, string(m.Value))
	assert.Equal(t, "recommendation-requests", m.Topic)
	assert.Equal(t, 2, m.Partition)
	assert.Equal(t, int64(42), m.Offset)
	assert.Equal(t, now, m.Timestamp)
	assert.Equal(t, "watch", m.Headers["source"])
	assert.Nil(t, m.Commit)
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2026, 10, 19, 15, 10, 0, 0, time.UTC)
	result := pipeline.Result{
		RequestID: "req-1",
		Outcome:   pipeline.OutcomeOK,
		Response: &planner.RecommendationResponse{
			ID:    "req-1",
			Query: "flea markets",
			Recommendations: []domain.Recommendation{{
				Event: domain.ClassifiedEvent{
					RawEvent: domain.RawEvent{Title: "Brooklyn Flea"},
					Category: domain.CategoryVintage,
				},
				Rank: 1,
			}},
		},
		ProcessedAt: now,
	}

	msg, err := serializeToMessage(result)
	require.NoError(t, err)

	assert.Equal(t, []byte("req-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"category":"vintage"`)
	assert.Contains(t, string(msg.Value), `"outcome":"ok"`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "outcome", msg.Headers[0].Key)
	assert.Equal(t, []byte("ok"), msg.Headers[0].Value)
	assert.Equal(t, "processed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}
