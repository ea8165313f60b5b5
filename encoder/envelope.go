package encoder

import (
	"github.com/thapovan-inc/orion-llmobs-relay/event"
	"go.uber.org/zap"
)

type spanEnvelope struct {
	Stage     string        `json:"_dd.stage"`
	EventType string        `json:"event_type"`
	Spans     []event.Event `json:"spans"`
}

type evalMetricEnvelope struct {
	Data evalMetricData `json:"data"`
}

type evalMetricData struct {
	Type       string               `json:"type"`
	Attributes evalMetricAttributes `json:"attributes"`
}

type evalMetricAttributes struct {
	Metrics []event.Event `json:"metrics"`
}

// SpanEnvelope produces {"_dd.stage": "raw", "event_type": "span", "spans": [...]}.
func SpanEnvelope(events []event.Event) interface{} {
	return spanEnvelope{Stage: "raw", EventType: event.TypeSpan, Spans: events}
}

// EvalMetricEnvelope produces {"data": {"type": "evaluation_metric", "attributes": {"metrics": [...]}}}.
func EvalMetricEnvelope(events []event.Event) interface{} {
	return evalMetricEnvelope{Data: evalMetricData{
		Type:       event.TypeEvaluationMetric,
		Attributes: evalMetricAttributes{Metrics: events},
	}}
}

func NewSpanEncoder(capacity int, logger *zap.Logger) *Encoder {
	return New(event.TypeSpan, capacity, SpanEnvelope, logger)
}

func NewEvalMetricEncoder(capacity int, logger *zap.Logger) *Encoder {
	return New(event.TypeEvaluationMetric, capacity, EvalMetricEnvelope, logger)
}
