package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/storm-event-planner/internal/planner"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Message is one request read from the source topic. Commit acknowledges it.
type Message struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Headers   map[string]string
	Commit    func(ctx context.Context) error
}

// Result is the answer to one recommendation request, published to the sink
// topic. Exactly one of Response and Error is set.
type Result struct {
	RequestID   string                          `json:"request_id"`
	Outcome     string                          `json:"outcome"`
	Response    *planner.RecommendationResponse `json:"response,omitempty"`
	Error       string                          `json:"error,omitempty"`
	ProcessedAt time.Time                       `json:"processed_at"`
}

// DecodeRequest parses a message value as a recommendation request. The
// message key becomes the request ID when the payload carries none.
func DecodeRequest(msg Message) (planner.RecommendationRequest, error) {
	var req planner.RecommendationRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return planner.RecommendationRequest{}, fmt.Errorf("decode recommendation request: %w", err)
	}
	if req.ID == "" {
		req.ID = string(msg.Key)
	}
	return req, nil
}

// NewResult wraps a batch item for publishing.
func NewResult(requestID string, item planner.BatchItem, now time.Time) Result {
	r := Result{RequestID: requestID, ProcessedAt: now.UTC()}
	if item.Err != nil {
		r.Outcome = OutcomeError
		r.Error = item.Err.Error()
		return r
	}
	r.Outcome = OutcomeOK
	r.Response = item.Response
	return r
}
