package ingest

import (
	"github.com/juju/errors"
	"github.com/thapovan-inc/orion-llmobs-relay/bookkeeper"
	"github.com/thapovan-inc/orion-llmobs-relay/event"
	"github.com/thapovan-inc/orion-llmobs-relay/util"
	"github.com/vmihailenco/msgpack"
	"go.uber.org/zap"
)

const (
	RootParentID    = "undefined"
	DefaultSpanName = "orion.span"
	MetaSpanKind    = "span.kind"
	MetaMetadata    = "metadata"
)

// pendingSpan is what the book keeper holds for a span until both ends are known.
type pendingSpan struct {
	TraceID       string
	SpanID        string
	ParentID      string
	Service       string
	Name          string
	Started       bool
	Ended         bool
	StartMicros   int64
	EndMicros     int64
	Input         string
	Output        string
	Status        string
	StatusMessage string
	Logs          []pendingLog
}

type pendingLog struct {
	EventID         uint64
	TimestampMicros int64
	Level           string
	Message         string
	Location        string
}

// Assembler pairs the start, log and end parts of orion spans into span events.
// Parts of one span must be applied by one goroutine at a time.
type Assembler struct {
	bookKeeper bookkeeper.BookKeeper
	spans      SpanSink
	namespace  string
	mlApp      string
	logger     *zap.Logger
}

// NewAssembler builds an assembler. Parts from a namespace other than namespace are
// skipped unless namespace is empty.
func NewAssembler(bk bookkeeper.BookKeeper, spans SpanSink, namespace, mlApp string, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = util.GetLogger("ingest", "NewAssembler")
	}
	return &Assembler{bookKeeper: bk, spans: spans, namespace: namespace, mlApp: mlApp, logger: logger}
}

// decode parses an orion key and its protobuf value.
func (a *Assembler) decode(key string, value []byte) (part, error) {
	k, err := parseOrionKey(key)
	if err != nil {
		return part{}, err
	}
	if a.namespace != "" && k.namespace != a.namespace {
		return part{}, errors.NotValidf("namespace %q", k.namespace)
	}
	return decodePart(k, value)
}

// apply merges p into the pending state of its span and emits the span once both its
// start and end are known.
func (a *Assembler) apply(p part) {
	logger := a.logger.With(zap.String("trace_id", p.traceID), zap.String("span_id", p.spanID))
	if p.kind == partUnknown {
		logger.Warn("Skipping orion span part of unknown type")
		return
	}
	if a.bookKeeper.Ended(p.spanID) {
		logger.Debug("Span already emitted, skipping part")
		return
	}
	pending, err := a.recall(p)
	if err != nil {
		logger.Error("Unable to recall pending span", zap.Error(err))
		return
	}
	pending.merge(p)

	if pending.Started && pending.Ended {
		a.spans.Enqueue(a.toEvent(pending))
		if err := a.bookKeeper.MarkEnded(p.spanID); err != nil {
			logger.Warn("Unable to mark span as emitted", zap.Error(err))
		}
		return
	}
	record, err := msgpack.Marshal(pending)
	if err != nil {
		logger.Error("Unable to encode pending span", zap.Error(err))
		return
	}
	if err := a.bookKeeper.Remember(p.spanID, record); err != nil {
		logger.Error("Unable to remember pending span", zap.Error(err))
	}
}

func (a *Assembler) recall(p part) (*pendingSpan, error) {
	record, found, err := a.bookKeeper.Recall(p.spanID)
	if err != nil {
		return nil, err
	}
	pending := &pendingSpan{TraceID: p.traceID, SpanID: p.spanID}
	if !found {
		return pending, nil
	}
	if err := msgpack.Unmarshal(record, pending); err != nil {
		return nil, errors.Annotate(err, "corrupt pending span record")
	}
	return pending, nil
}

func (s *pendingSpan) merge(p part) {
	if p.parentID != "" {
		s.ParentID = p.parentID
	}
	if p.service != "" {
		s.Service = p.service
	}
	if s.Name == "" && p.traceName != "" {
		s.Name = p.traceName
	}
	switch p.kind {
	case partStart:
		s.Started = true
		s.StartMicros = p.timestampMicros
		s.Input = p.metadata
	case partEnd:
		s.Ended = true
		s.EndMicros = p.timestampMicros
		s.Output = p.metadata
	case partLog:
		s.Logs = append(s.Logs, pendingLog{
			EventID:         p.eventID,
			TimestampMicros: p.timestampMicros,
			Level:           p.level,
			Message:         p.message,
			Location:        p.location,
		})
		if p.isError() {
			s.Status = "error"
			s.StatusMessage = p.message
		}
	}
}

func (a *Assembler) toEvent(s *pendingSpan) event.SpanEvent {
	duration := (s.EndMicros - s.StartMicros) * 1000
	if duration < 0 {
		duration = 0
	}
	name := s.Name
	if name == "" {
		name = DefaultSpanName
	}
	parentID := s.ParentID
	if parentID == "" {
		parentID = RootParentID
	}
	status := s.Status
	if status == "" {
		status = "ok"
	}
	tags := []string{"source:orion"}
	if s.Service != "" {
		tags = append(tags, "service:"+s.Service)
	}
	if a.mlApp != "" {
		tags = append(tags, "ml_app:"+a.mlApp)
	}
	meta := map[string]event.Value{
		MetaSpanKind:     event.String("workflow"),
		event.MetaInput:  event.Map(map[string]event.Value{"value": event.String(s.Input)}),
		event.MetaOutput: event.Map(map[string]event.Value{"value": event.String(s.Output)}),
	}
	if len(s.Logs) > 0 {
		logs := make([]event.Value, len(s.Logs))
		for i, l := range s.Logs {
			logs[i] = event.Map(map[string]event.Value{
				"level":        event.String(l.Level),
				"message":      event.String(l.Message),
				"location":     event.String(l.Location),
				"timestamp_us": event.Int(l.TimestampMicros),
			})
		}
		meta[MetaMetadata] = event.Map(map[string]event.Value{"logs": event.List(logs...)})
	}
	return event.SpanEvent{
		SpanID:        s.SpanID,
		TraceID:       s.TraceID,
		ParentID:      parentID,
		Tags:          tags,
		Service:       s.Service,
		Name:          name,
		StartNS:       s.StartMicros * 1000,
		Duration:      float64(duration),
		Status:        status,
		StatusMessage: s.StatusMessage,
		Meta:          meta,
		Metrics:       map[string]float64{"orion.log_events": float64(len(s.Logs))},
	}
}
