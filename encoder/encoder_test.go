package encoder

import (
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thapovan-inc/orion-llmobs-relay/event"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"math"
	"testing"
)

func span(id string) event.SpanEvent {
	return event.SpanEvent{
		SpanID:  id,
		TraceID: "t1",
		Name:    "llm.call",
		Status:  "ok",
		Meta:    map[string]event.Value{"span.kind": event.String("llm")},
	}
}

func sizeOf(t *testing.T, ev event.Event) int {
	size, err := event.Size(ev)
	require.NoError(t, err)
	return size
}

func TestPutTracksBufferSize(t *testing.T) {
	enc := NewSpanEncoder(10, zap.NewNop())
	a, b := span("a"), span("b")

	assert.Equal(t, 2, enc.Put(a, b))
	assert.Equal(t, 2, enc.Len())
	assert.Equal(t, sizeOf(t, a)+sizeOf(t, b), enc.BufferSize())
	assert.Equal(t, ContentTypeJSON, enc.ContentType())
}

func TestPutDropsWhenFull(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	enc := NewSpanEncoder(2, zap.New(core))

	assert.Equal(t, 2, enc.Put(span("a"), span("b"), span("c")))
	assert.Equal(t, 2, enc.Len())
	require.Equal(t, 1, logs.FilterMessage("event buffer full, dropping event").Len())
	assert.EqualValues(t, 2, logs.All()[0].ContextMap()["limit"])
}

func TestPutDropsUnserializableEvent(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	enc := NewSpanEncoder(10, zap.New(core))

	bad := span("nan")
	bad.Metrics = map[string]float64{"score": math.NaN()}
	assert.Equal(t, 0, enc.Put(bad))
	assert.Equal(t, 0, enc.Len())
	assert.Equal(t, 0, enc.BufferSize())
	assert.Equal(t, 1, logs.Len())
}

func TestPutWithLimitDetachesPendingBatch(t *testing.T) {
	enc := NewSpanEncoder(10, zap.NewNop())

	overflow, ok := enc.PutWithLimit(100, span("a"), 60)
	assert.True(t, ok)
	assert.Empty(t, overflow)
	assert.Equal(t, 60, enc.BufferSize())

	overflow, ok = enc.PutWithLimit(100, span("b"), 60)
	assert.True(t, ok)
	require.Len(t, overflow, 1)
	assert.Equal(t, "a", overflow[0].(event.SpanEvent).SpanID)
	assert.Equal(t, 60, enc.BufferSize())
	assert.Equal(t, 1, enc.Len())

	overflow, ok = enc.PutWithLimit(100, span("c"), 40)
	assert.True(t, ok)
	assert.Empty(t, overflow)
	assert.Equal(t, 100, enc.BufferSize())
}

func TestPutWithLimitOnEmptyEncoder(t *testing.T) {
	enc := NewSpanEncoder(10, zap.NewNop())
	overflow, ok := enc.PutWithLimit(10, span("big"), 50)
	assert.True(t, ok)
	assert.Empty(t, overflow)
	assert.Equal(t, 50, enc.BufferSize())
}

func TestEncodeSpanEnvelope(t *testing.T) {
	enc := NewSpanEncoder(10, zap.NewNop())
	enc.Put(span("a"), span("b"))

	payload, ok := enc.Encode()
	require.True(t, ok)
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, event.TypeSpan, payload.EventType)
	assert.Equal(t, 0, enc.Len())
	assert.Equal(t, 0, enc.BufferSize())

	var doc struct {
		Stage     string                   `json:"_dd.stage"`
		EventType string                   `json:"event_type"`
		Spans     []map[string]interface{} `json:"spans"`
	}
	require.NoError(t, json.Unmarshal(payload.Body, &doc))
	assert.Equal(t, "raw", doc.Stage)
	assert.Equal(t, "span", doc.EventType)
	require.Len(t, doc.Spans, 2)
	assert.Equal(t, "a", doc.Spans[0]["span_id"])
	assert.Equal(t, "b", doc.Spans[1]["span_id"])
}

func TestEncodeEvalMetricEnvelope(t *testing.T) {
	enc := NewEvalMetricEncoder(10, zap.NewNop())
	score := 0.5
	enc.Put(event.EvaluationMetricEvent{
		SpanID: "1", TraceID: "2", MetricType: event.MetricTypeScore,
		Label: "faithfulness", ScoreValue: &score, MLApp: "chat", TimestampMS: 42,
	})

	payload, ok := enc.Encode()
	require.True(t, ok)
	assert.Equal(t, event.TypeEvaluationMetric, payload.EventType)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(payload.Body, &doc))
	data := doc["data"].(map[string]interface{})
	assert.Equal(t, "evaluation_metric", data["type"])
	metrics := data["attributes"].(map[string]interface{})["metrics"].([]interface{})
	require.Len(t, metrics, 1)
	assert.Equal(t, "faithfulness", metrics[0].(map[string]interface{})["label"])
}

func TestEncodeEmpty(t *testing.T) {
	enc := NewSpanEncoder(10, zap.NewNop())
	_, ok := enc.Encode()
	assert.False(t, ok)
}

func TestEncodeFailureDiscardsBatch(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	enc := NewSpanEncoder(10, zap.New(core))
	enc.Put(span("a"), span("b"))
	enc.marshal = func(v interface{}) ([]byte, error) {
		return nil, errors.New("boom")
	}

	_, ok := enc.Encode()
	assert.False(t, ok)
	assert.Equal(t, 0, enc.Len())
	require.Equal(t, 1, logs.FilterMessage("failed to encode events").Len())
	assert.EqualValues(t, 2, logs.All()[0].ContextMap()["count"])
}
