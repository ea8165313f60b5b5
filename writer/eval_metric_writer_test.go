package writer

import (
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thapovan-inc/orion-llmobs-relay/event"
	"github.com/thapovan-inc/orion-llmobs-relay/lifecycle"
	"github.com/thapovan-inc/orion-llmobs-relay/transport"
	"go.uber.org/zap"
	"testing"
	"time"
)

func TestEvalMetricWriterPostsEnvelope(t *testing.T) {
	in := newFakeIntake(t)
	config := Config{APIKey: "k", IntakeURL: in.server.URL, Interval: time.Hour}
	w, err := NewEvalMetricWriter(config, WithLogger(zap.NewNop()), WithRegistry(lifecycle.NewRegistry()))
	require.NoError(t, err)

	category := "relevant"
	w.Enqueue(event.EvaluationMetricEvent{
		SpanID: "1", TraceID: "2", MetricType: event.MetricTypeCategorical, Label: "relevance",
		CategoricalValue: &category, MLApp: "chat", TimestampMS: 1700000000000,
	})
	w.Flush()

	reqs := in.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, transport.EvalMetricEndpoint, reqs[0].path)
	assert.Equal(t, "k", reqs[0].headers.Get(transport.APIKeyHeader))

	var body struct {
		Data struct {
			Type       string `json:"type"`
			Attributes struct {
				Metrics []event.EvaluationMetricEvent `json:"metrics"`
			} `json:"attributes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(reqs[0].body, &body))
	assert.Equal(t, "evaluation_metric", body.Data.Type)
	require.Len(t, body.Data.Attributes.Metrics, 1)
	assert.Equal(t, "relevant", *body.Data.Attributes.Metrics[0].CategoricalValue)
}

func TestEvalMetricWriterDropsInvalidMetric(t *testing.T) {
	in := newFakeIntake(t)
	config := Config{APIKey: "k", IntakeURL: in.server.URL, Interval: time.Hour}
	w, err := NewEvalMetricWriter(config, WithLogger(zap.NewNop()), WithRegistry(lifecycle.NewRegistry()))
	require.NoError(t, err)

	w.Enqueue(event.EvaluationMetricEvent{MetricType: event.MetricTypeScore, Label: "no value"})
	assert.Equal(t, 0, w.Pending())
	assert.Equal(t, 1.0, testutil.ToFloat64(w.stats.dropped.WithLabelValues(dropInvalid)))
	w.Flush()
	assert.Empty(t, in.Requests())
}

func TestEvalMetricWriterRequiresAPIKey(t *testing.T) {
	_, err := NewEvalMetricWriter(Config{Mode: Proxied})
	assert.Error(t, err)
}

func TestEvalMetricWriterDefaultURL(t *testing.T) {
	w, err := NewEvalMetricWriter(Config{APIKey: "k", Site: "us5.datadoghq.com"}, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://api.us5.datadoghq.com/api/intake/llm-obs/v1/eval-metric"}, w.URLs())

	fresh, err := w.Recreate()
	require.NoError(t, err)
	assert.Equal(t, w.URLs(), fresh.URLs())
}
