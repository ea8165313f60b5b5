package writer

import (
	"github.com/thapovan-inc/orion-llmobs-relay/encoder"
	"github.com/thapovan-inc/orion-llmobs-relay/event"
	"github.com/thapovan-inc/orion-llmobs-relay/transport"
	"go.uber.org/zap"
)

// EvalMetricWriter ships evaluation metrics. The metric intake is only reachable
// directly, so an API key is always required.
type EvalMetricWriter struct {
	*Writer
	opts []Option
}

func NewEvalMetricWriter(config Config, opts ...Option) (*EvalMetricWriter, error) {
	config = config.withDefaults()
	if err := config.requireAPIKey(event.TypeEvaluationMetric); err != nil {
		return nil, err
	}
	w := newWriter(event.TypeEvaluationMetric, config, 0, false, evalMetricClients, opts)
	return &EvalMetricWriter{Writer: w, opts: opts}, nil
}

func evalMetricClients(config Config, o options) []*transport.Client {
	enc := encoder.NewEvalMetricEncoder(config.BufferLimit, o.logger.Named("encoder"))
	return []*transport.Client{transport.NewEvalMetricClient(config.Site, config.APIKey, config.IntakeURL, enc)}
}

func (w *EvalMetricWriter) Enqueue(ev event.EvaluationMetricEvent) {
	if err := ev.Validate(); err != nil {
		w.logger.Warn("dropping invalid evaluation metric", zap.Error(err))
		w.stats.enqueued.Inc()
		w.stats.drop(dropInvalid, 1)
		return
	}
	w.put(ev)
}

func (w *EvalMetricWriter) Recreate() (*EvalMetricWriter, error) {
	return NewEvalMetricWriter(w.config, w.opts...)
}
