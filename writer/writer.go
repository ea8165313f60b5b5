// Package writer batches LLM Observability events and ships them to the intake.
//
// Producers call Enqueue and never block on the network or see a failure. A periodic
// flush posts whatever is buffered, a payload about to cross PayloadSizeLimit is
// flushed early, and Stop or the lifecycle shutdown hook runs one final flush. A batch
// that fails to post is logged and dropped.
package writer

import (
	"context"
	"fmt"
	"github.com/thapovan-inc/orion-llmobs-relay/event"
	"github.com/thapovan-inc/orion-llmobs-relay/lifecycle"
	"github.com/thapovan-inc/orion-llmobs-relay/periodic"
	"github.com/thapovan-inc/orion-llmobs-relay/transport"
	"github.com/thapovan-inc/orion-llmobs-relay/util"
	"go.uber.org/zap"
	"sync"
	"time"
)

// generation is everything a reset replaces: the clients with their encoders, the
// flush lock and the forced flushes still running.
type generation struct {
	clients  []*transport.Client
	flushMu  sync.Mutex
	inflight sync.WaitGroup
}

// Writer is the part shared by SpanWriter and EvalMetricWriter.
type Writer struct {
	name         string
	config       Config
	opts         options
	payloadLimit int
	truncate     bool
	newClients   func() []*transport.Client

	sender  *transport.Sender
	service *periodic.Service
	stats   *stats
	logger  *zap.Logger
	hookKey string

	mu  sync.RWMutex
	gen *generation
}

func newWriter(name string, config Config, payloadLimit int, truncate bool,
	newClients func(config Config, o options) []*transport.Client, opts []Option) *Writer {
	o := options{registry: lifecycle.Default}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = util.GetLogger("writer", "newWriter")
	}
	w := &Writer{
		name:         name,
		config:       config,
		opts:         o,
		payloadLimit: payloadLimit,
		truncate:     truncate,
		sender:       transport.NewSender(o.httpClient, config.Timeout, config.Retry, o.logger.Named("transport")),
		stats:        newStats(name, o.registerer),
		logger:       o.logger.With(zap.String("writer", name)),
	}
	w.newClients = func() []*transport.Client {
		return newClients(config, o)
	}
	w.hookKey = fmt.Sprintf("llmobs-writer-%s-%p", name, w)
	w.service = periodic.New(config.Interval, w.Flush, w.logger)
	w.gen = &generation{clients: w.newClients()}
	return w
}

func (w *Writer) Name() string {
	return w.name
}

func (w *Writer) Config() Config {
	return w.config
}

func (w *Writer) Status() periodic.Status {
	return w.service.Status()
}

// URLs lists the destinations of the current clients.
func (w *Writer) URLs() []string {
	gen := w.current()
	urls := make([]string, len(gen.clients))
	for i, c := range gen.clients {
		urls[i] = c.URL
	}
	return urls
}

// Pending is the number of events waiting in the encoders.
func (w *Writer) Pending() int {
	n := 0
	for _, c := range w.current().clients {
		n += c.Encoder.Len()
	}
	return n
}

func (w *Writer) current() *generation {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gen
}

func (w *Writer) put(ev event.Event) {
	w.stats.enqueued.Inc()
	size, err := event.Size(ev)
	if err != nil {
		w.logger.Error("unable to serialize event, dropping it", zap.Error(err))
		w.stats.drop(dropSerialization, 1)
		return
	}
	if span, ok := ev.(event.SpanEvent); ok && w.truncate && size >= EventSizeLimit {
		w.logger.Warn("dropping event input/output because its size exceeds the event size limit",
			zap.Int("size", size), zap.Int("limit", EventSizeLimit), zap.String("span_id", span.SpanID))
		ev = span.Truncated()
		if size, err = event.Size(ev); err != nil {
			w.logger.Error("unable to serialize truncated event, dropping it", zap.Error(err))
			w.stats.drop(dropSerialization, 1)
			return
		}
		w.stats.truncated.Inc()
	}

	gen := w.current()
	for _, c := range gen.clients {
		overflow, ok := c.Encoder.PutWithLimit(w.payloadLimit, ev, size)
		if !ok {
			w.stats.drop(dropBufferFull, 1)
		}
		if len(overflow) > 0 {
			w.flushOverflow(gen, c, overflow)
		}
	}
}

func (w *Writer) flushOverflow(gen *generation, c *transport.Client, events []event.Event) {
	send := func() {
		gen.flushMu.Lock()
		defer gen.flushMu.Unlock()
		w.ship(c, events)
	}
	if w.opts.syncMode {
		send()
		return
	}
	gen.inflight.Add(1)
	go func() {
		defer gen.inflight.Done()
		send()
	}()
}

// Flush posts everything buffered. It is the periodic callback and never fails.
func (w *Writer) Flush() {
	gen := w.current()
	gen.flushMu.Lock()
	defer gen.flushMu.Unlock()
	for _, c := range gen.clients {
		events := c.Encoder.Detach()
		if len(events) == 0 {
			continue
		}
		w.ship(c, events)
	}
}

func (w *Writer) ship(c *transport.Client, events []event.Event) {
	payload, ok := c.Encoder.Serialize(events)
	if !ok {
		w.stats.drop(dropSerialization, len(events))
		return
	}
	w.stats.payloadBytes.Observe(float64(len(payload.Body)))
	if err := w.sender.Send(context.Background(), c, payload); err != nil {
		w.logger.Error("failed to send events",
			zap.Int("count", payload.Count),
			zap.String("event_type", payload.EventType),
			zap.String("url", c.URL),
			zap.Int("status", transport.StatusCode(err)),
			zap.Error(err))
		w.stats.requests.WithLabelValues("error").Inc()
		w.stats.drop(dropSendFailed, payload.Count)
		return
	}
	w.stats.requests.WithLabelValues("ok").Inc()
	w.stats.sent.Add(float64(payload.Count))
}

// Start launches the periodic flush and registers the final flush with the
// lifecycle registry.
func (w *Writer) Start() error {
	if err := w.service.Start(); err != nil {
		return err
	}
	w.opts.registry.Register(w.hookKey, func(ctx context.Context) error {
		timeout := w.config.Timeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		w.Stop(timeout)
		return nil
	})
	w.opts.registry.RegisterAfterFork(w.hookKey, w.AfterFork)
	w.logger.Debug("started writer", zap.Strings("urls", w.URLs()), zap.Duration("interval", w.config.Interval))
	return nil
}

// Stop halts the periodic flush, waiting up to timeout for a running one, then flushes
// what is left. It does nothing when the writer is not running.
func (w *Writer) Stop(timeout time.Duration) {
	if w.service.Status() == periodic.Stopped {
		return
	}
	w.service.Stop(timeout)
	w.OnShutdown()
	w.opts.registry.Unregister(w.hookKey)
	w.opts.registry.UnregisterAfterFork(w.hookKey)
}

// OnShutdown waits for forced flushes and then flushes synchronously.
func (w *Writer) OnShutdown() {
	w.current().inflight.Wait()
	w.Flush()
}

// AfterFork gives the writer fresh encoders and locks. Events buffered before the
// call are left to the previous owner. A running writer gets a new flush loop.
func (w *Writer) AfterFork() {
	gen := &generation{clients: w.newClients()}
	w.mu.Lock()
	w.gen = gen
	w.mu.Unlock()
	w.service.Reset()
}
