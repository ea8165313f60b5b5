// Package ingest turns event source messages into writer events.
//
// Messages on the orion topic are protobuf span parts assembled by an Assembler.
// Every other message carries JSON and is routed by its key: "span" or "span_<id>"
// for span events, "evaluation_metric..." for evaluation metrics.
package ingest

import (
	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/thapovan-inc/orion-llmobs-relay/consumer"
	"github.com/thapovan-inc/orion-llmobs-relay/event"
	"github.com/thapovan-inc/orion-llmobs-relay/util"
	"go.uber.org/zap"
	"strings"
	"time"
)

// SpanSink receives finished span events. Enqueue must not block.
type SpanSink interface {
	Enqueue(ev event.SpanEvent)
}

type MetricSink interface {
	Enqueue(ev event.EvaluationMetricEvent)
}

type RouterConfig struct {
	OrionTopic string
	MLApp      string
}

type Router struct {
	config    RouterConfig
	spans     SpanSink
	metrics   MetricSink
	assembler *Assembler
	logger    *zap.Logger

	pid     *actor.PID
	stopped chan struct{}
}

// NewRouter builds a router. metrics and assembler may be nil, in which case the
// matching messages are dropped.
func NewRouter(config RouterConfig, spans SpanSink, metrics MetricSink, assembler *Assembler, logger *zap.Logger) *Router {
	if logger == nil {
		logger = util.GetLogger("ingest", "NewRouter")
	}
	return &Router{
		config:    config,
		spans:     spans,
		metrics:   metrics,
		assembler: assembler,
		logger:    logger,
		stopped:   make(chan struct{}),
	}
}

func (r *Router) PrepareActor() *actor.PID {
	props := actor.FromProducer(func() actor.Actor {
		return r
	})
	r.pid = actor.Spawn(props)
	return r.pid
}

// Done is closed once the actor has stopped.
func (r *Router) Done() <-chan struct{} {
	return r.stopped
}

// Wait blocks until the actor has stopped or timeout elapses.
func (r *Router) Wait(timeout time.Duration) bool {
	select {
	case <-r.stopped:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (r *Router) Receive(c actor.Context) {
	switch msg := c.Message().(type) {
	case *consumer.Message:
		r.Route(msg)
	case string:
		if msg == consumer.SigStop {
			r.logger.Error("Event source failed, stopping router")
			c.Self().Poison()
		}
	case *actor.Started:
		r.logger.Info("Actor started")
	case *actor.Restarting:
		r.logger.Info("Actor restarting")
	case *actor.Stopping:
		r.logger.Info("Stopping, actor is about shut down")
	case *actor.Stopped:
		r.logger.Info("Stopped, actor and its children are stopped")
		close(r.stopped)
	}
}

// Route decodes msg and hands the result to the sinks. Malformed messages are logged
// and skipped.
func (r *Router) Route(msg *consumer.Message) {
	key := string(msg.Key)
	if r.config.OrionTopic != "" && msg.Topic == r.config.OrionTopic {
		r.routeOrion(key, msg.Value)
		return
	}
	switch {
	case strings.HasPrefix(key, event.TypeEvaluationMetric):
		r.routeMetrics(key, msg.Value, msg.Timestamp)
	case key == event.TypeSpan || strings.HasPrefix(key, event.TypeSpan+"_"):
		r.routeSpans(key, msg.Value)
	default:
		r.logger.Warn("Skipping message with unknown key", zap.String("topic", msg.Topic), zap.String("key", key))
	}
}

func (r *Router) routeOrion(key string, value []byte) {
	if r.assembler == nil {
		r.logger.Debug("No assembler for orion span parts", zap.String("key", key))
		return
	}
	p, err := r.assembler.decode(key, value)
	if err != nil {
		r.logger.Warn("Skipping malformed orion span part", zap.String("key", key), zap.Error(err))
		return
	}
	r.assembler.apply(p)
}

func (r *Router) routeSpans(key string, value []byte) {
	spans, err := decodeBatch[event.SpanEvent](value)
	if err != nil {
		r.logger.Warn("Skipping malformed span message", zap.String("key", key), zap.Error(err))
		return
	}
	for _, span := range spans {
		if span.SpanID == "" || span.TraceID == "" {
			r.logger.Warn("Skipping span without identifiers", zap.String("key", key))
			continue
		}
		r.spans.Enqueue(withMLApp(span, r.config.MLApp))
	}
}

func (r *Router) routeMetrics(key string, value []byte, timestampMicros uint64) {
	if r.metrics == nil {
		r.logger.Debug("Evaluation metrics disabled, dropping message", zap.String("key", key))
		return
	}
	metrics, err := decodeBatch[event.EvaluationMetricEvent](value)
	if err != nil {
		r.logger.Warn("Skipping malformed evaluation metric message", zap.String("key", key), zap.Error(err))
		return
	}
	for _, m := range metrics {
		if m.MLApp == "" {
			m.MLApp = r.config.MLApp
		}
		if m.TimestampMS == 0 {
			m.TimestampMS = int64(timestampMicros / 1000)
		}
		r.metrics.Enqueue(m)
	}
}

func withMLApp(span event.SpanEvent, mlApp string) event.SpanEvent {
	if mlApp == "" {
		return span
	}
	for _, tag := range span.Tags {
		if strings.HasPrefix(tag, "ml_app:") {
			return span
		}
	}
	tags := make([]string, 0, len(span.Tags)+1)
	tags = append(tags, span.Tags...)
	span.Tags = append(tags, "ml_app:"+mlApp)
	return span
}
