package writer

import (
	"github.com/thapovan-inc/orion-llmobs-relay/encoder"
	"github.com/thapovan-inc/orion-llmobs-relay/event"
	"github.com/thapovan-inc/orion-llmobs-relay/transport"
)

// SpanWriter ships span events in agentless or proxied mode.
type SpanWriter struct {
	*Writer
	opts []Option
}

func NewSpanWriter(config Config, opts ...Option) (*SpanWriter, error) {
	config = config.withDefaults()
	if config.Mode == Agentless {
		if err := config.requireAPIKey(event.TypeSpan); err != nil {
			return nil, err
		}
	}
	w := newWriter(event.TypeSpan, config, PayloadSizeLimit, true, spanClients, opts)
	return &SpanWriter{Writer: w, opts: opts}, nil
}

func spanClients(config Config, o options) []*transport.Client {
	enc := encoder.NewSpanEncoder(config.BufferLimit, o.logger.Named("encoder"))
	if config.Mode == Proxied {
		return []*transport.Client{transport.NewProxiedSpanClient(config.AgentURL, enc)}
	}
	return []*transport.Client{transport.NewAgentlessSpanClient(config.Site, config.APIKey, config.IntakeURL, enc)}
}

// Enqueue buffers ev for the next flush. Spans of EventSizeLimit or more lose their
// input and output first.
func (w *SpanWriter) Enqueue(ev event.SpanEvent) {
	w.put(ev)
}

// Recreate returns a stopped writer with the same configuration and options.
func (w *SpanWriter) Recreate() (*SpanWriter, error) {
	return NewSpanWriter(w.config, w.opts...)
}
