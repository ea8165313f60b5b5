// Package encoder batches events and serializes them into intake payloads.
//
// An Encoder keeps its own lock and a running BufferSize, the sum of the serialized
// lengths of the events it holds. Writers compare BufferSize against the intake
// payload limit to decide when a batch must leave before the next timer tick.
package encoder

import (
	"github.com/json-iterator/go"
	"github.com/thapovan-inc/orion-llmobs-relay/buffer"
	"github.com/thapovan-inc/orion-llmobs-relay/event"
	"github.com/thapovan-inc/orion-llmobs-relay/util"
	"go.uber.org/zap"
	"sync"
)

const ContentTypeJSON = "application/json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Payload is one serialized batch ready to be posted.
type Payload struct {
	Body      []byte
	Count     int
	EventType string
}

// Envelope wraps a detached batch into the document the intake expects.
type Envelope func(events []event.Event) interface{}

type Encoder struct {
	mu         sync.Mutex
	buf        *buffer.Bounded
	bufferSize int
	eventType  string
	envelope   Envelope
	marshal    func(v interface{}) ([]byte, error)
	logger     *zap.Logger
}

func New(eventType string, capacity int, envelope Envelope, logger *zap.Logger) *Encoder {
	if logger == nil {
		logger = util.GetLogger("encoder", "New")
	}
	return &Encoder{
		buf:       buffer.New(capacity),
		eventType: eventType,
		envelope:  envelope,
		marshal:   json.Marshal,
		logger:    logger.With(zap.String("event_type", eventType)),
	}
}

func (e *Encoder) EventType() string {
	return e.eventType
}

func (e *Encoder) ContentType() string {
	return ContentTypeJSON
}

func (e *Encoder) Capacity() int {
	return e.buf.Capacity()
}

func (e *Encoder) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf.Len()
}

// BufferSize is the serialized size of the events currently held.
func (e *Encoder) BufferSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bufferSize
}

// Put appends events, dropping each one that does not fit or cannot be serialized.
// It returns the number of events accepted.
func (e *Encoder) Put(events ...event.Event) int {
	accepted := 0
	for _, ev := range events {
		b, err := e.marshal(ev)
		if err != nil {
			e.logger.Error("unable to serialize event, dropping it", zap.Error(err))
			continue
		}
		if _, ok := e.PutWithLimit(0, ev, len(b)); ok {
			accepted++
		}
	}
	return accepted
}

// PutWithLimit appends ev whose serialized size is size. When limit is positive and
// holding ev would push BufferSize past limit, the pending batch is detached first and
// returned as overflow; BufferSize restarts from zero before ev is counted. ok is false
// when ev was dropped because the encoder is at capacity.
func (e *Encoder) PutWithLimit(limit int, ev event.Event, size int) (overflow []event.Event, ok bool) {
	e.mu.Lock()
	if limit > 0 && e.bufferSize+size > limit {
		overflow = e.buf.DetachAll()
		e.bufferSize = 0
	}
	ok = e.buf.Enqueue(ev)
	if ok {
		e.bufferSize += size
	}
	e.mu.Unlock()

	if len(overflow) > 0 {
		e.logger.Debug("detached batch because queuing next event will exceed the payload limit",
			zap.Int("count", len(overflow)), zap.Int("limit", limit))
	}
	if !ok {
		e.logger.Warn("event buffer full, dropping event", zap.Int("limit", e.buf.Capacity()))
	}
	return overflow, ok
}

// Detach takes every held event and resets BufferSize.
func (e *Encoder) Detach() []event.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	events := e.buf.DetachAll()
	e.bufferSize = 0
	return events
}

// Encode detaches the held events and serializes them. ok is false when there was
// nothing to send or the batch could not be serialized, in which case it is discarded.
func (e *Encoder) Encode() (Payload, bool) {
	return e.Serialize(e.Detach())
}

// Serialize wraps events in the envelope and marshals them. It does not touch the
// encoder's held events.
func (e *Encoder) Serialize(events []event.Event) (Payload, bool) {
	if len(events) == 0 {
		return Payload{}, false
	}
	body, err := e.marshal(e.envelope(events))
	if err != nil {
		e.logger.Error("failed to encode events", zap.Int("count", len(events)), zap.Error(err))
		return Payload{}, false
	}
	e.logger.Debug("encoded events to be sent", zap.Int("count", len(events)), zap.Int("bytes", len(body)))
	return Payload{Body: body, Count: len(events), EventType: e.eventType}, true
}
