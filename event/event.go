// Package event holds the records shipped to the LLM Observability intake.
//
// An Event is either a SpanEvent or an EvaluationMetricEvent. Once handed to a writer
// an event is never modified, with the single exception of SpanEvent.Truncated which
// produces a copy with the large input/output payloads replaced.
package event

import (
	"github.com/json-iterator/go"
	"github.com/juju/errors"
)

const (
	TypeSpan             = "span"
	TypeEvaluationMetric = "evaluation_metric"
)

const (
	MetricTypeCategorical = "categorical"
	MetricTypeScore       = "score"
	MetricTypeNumerical   = "numerical"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is implemented by SpanEvent and EvaluationMetricEvent only.
type Event interface {
	EventType() string
}

type SpanEvent struct {
	SpanID           string             `json:"span_id"`
	TraceID          string             `json:"trace_id"`
	ParentID         string             `json:"parent_id"`
	SessionID        string             `json:"session_id"`
	Tags             []string           `json:"tags"`
	Service          string             `json:"service"`
	Name             string             `json:"name"`
	StartNS          int64              `json:"start_ns"`
	Duration         float64            `json:"duration"`
	Status           string             `json:"status"`
	StatusMessage    string             `json:"status_message"`
	Meta             map[string]Value   `json:"meta"`
	Metrics          map[string]float64 `json:"metrics"`
	CollectionErrors []string           `json:"collection_errors"`
}

func (SpanEvent) EventType() string {
	return TypeSpan
}

type EvaluationMetricEvent struct {
	SpanID           string   `json:"span_id"`
	TraceID          string   `json:"trace_id"`
	MetricType       string   `json:"metric_type"`
	Label            string   `json:"label"`
	CategoricalValue *string  `json:"categorical_value,omitempty"`
	NumericalValue   *float64 `json:"numerical_value,omitempty"`
	ScoreValue       *float64 `json:"score_value,omitempty"`
	MLApp            string   `json:"ml_app"`
	TimestampMS      int64    `json:"timestamp_ms"`
	Tags             []string `json:"tags,omitempty"`
}

func (EvaluationMetricEvent) EventType() string {
	return TypeEvaluationMetric
}

// Validate checks that the metric carries a label and the value matching its type.
func (m EvaluationMetricEvent) Validate() error {
	if m.Label == "" {
		return errors.NotValidf("evaluation metric without label")
	}
	switch m.MetricType {
	case MetricTypeCategorical:
		if m.CategoricalValue == nil {
			return errors.NotValidf("categorical metric %q without categorical_value", m.Label)
		}
	case MetricTypeScore:
		if m.ScoreValue == nil {
			return errors.NotValidf("score metric %q without score_value", m.Label)
		}
	case MetricTypeNumerical:
		if m.NumericalValue == nil {
			return errors.NotValidf("numerical metric %q without numerical_value", m.Label)
		}
	default:
		return errors.NotValidf("metric type %q", m.MetricType)
	}
	return nil
}

// Marshal serializes ev the same way the encoder does.
func Marshal(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// Size returns the length of the serialized event.
func Size(ev Event) (int, error) {
	b, err := Marshal(ev)
	if err != nil {
		return 0, errors.Annotatef(err, "unable to serialize %s event", ev.EventType())
	}
	return len(b), nil
}
