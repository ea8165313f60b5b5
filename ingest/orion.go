package ingest

import (
	"encoding/hex"
	"github.com/gogo/protobuf/proto"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/thapovan-inc/orionproto"
	"strconv"
	"strings"
)

type partKind int

const (
	partUnknown partKind = iota
	partStart
	partLog
	partEnd
)

// part is one orion span event reduced to what the assembler needs.
type part struct {
	traceID         string
	spanID          string
	parentID        string
	eventID         uint64
	kind            partKind
	timestampMicros int64
	service         string
	traceName       string
	location        string
	metadata        string
	level           string
	message         string
}

func (p part) isError() bool {
	return p.level == "error" || p.level == "critical"
}

type orionKey struct {
	namespace string
	traceID   string
	spanID    string
	eventID   uint64
}

// parseOrionKey splits keys of the form namespace_traceID_spanID_eventID.
func parseOrionKey(key string) (orionKey, error) {
	parts := strings.Split(key, "_")
	if len(parts) < 4 {
		return orionKey{}, errors.NotValidf("orion key %q", key)
	}
	traceID, err := normalizeID(parts[1])
	if err != nil {
		return orionKey{}, errors.Annotate(err, "trace id")
	}
	spanID, err := normalizeID(parts[2])
	if err != nil {
		return orionKey{}, errors.Annotate(err, "span id")
	}
	// the event id only orders log events, a bad one is not fatal
	eventID, _ := strconv.ParseUint(parts[3], 10, 64)
	return orionKey{namespace: parts[0], traceID: traceID, spanID: spanID, eventID: eventID}, nil
}

// normalizeID turns a UUID or dashed hex id into lower case hex without dashes.
func normalizeID(id string) (string, error) {
	if parsed, err := uuid.Parse(id); err == nil {
		return strings.Replace(parsed.String(), "-", "", -1), nil
	}
	stripped := strings.ToLower(strings.Replace(id, "-", "", -1))
	if stripped == "" {
		return "", errors.NotValidf("empty id")
	}
	if _, err := hex.DecodeString(stripped); err != nil && err != hex.ErrLength {
		return "", errors.NotValidf("id %q", id)
	}
	return stripped, nil
}

func decodePart(key orionKey, value []byte) (part, error) {
	spanData := &orionproto.Span{}
	if err := proto.Unmarshal(value, spanData); err != nil {
		return part{}, errors.Annotate(err, "unable to decode orion span")
	}
	p := part{
		traceID:         key.traceID,
		spanID:          key.spanID,
		eventID:         key.eventID,
		timestampMicros: int64(spanData.Timestamp),
		service:         spanData.ServiceName,
		traceName:       spanData.TraceContext.GetTraceName(),
		location:        spanData.EventLocation,
	}
	if parentID := spanData.GetParentSpanId(); parentID != "" {
		if normalized, err := normalizeID(parentID); err == nil {
			p.parentID = normalized
		}
	}
	switch ev := spanData.Event.(type) {
	case *orionproto.Span_StartEvent:
		p.kind = partStart
		p.metadata = ev.StartEvent.GetJsonString()
	case *orionproto.Span_EndEvent:
		p.kind = partEnd
		p.metadata = ev.EndEvent.GetJsonString()
	case *orionproto.Span_LogEvent:
		p.kind = partLog
		p.metadata = ev.LogEvent.GetJsonString()
		p.message = ev.LogEvent.Message
		p.level = levelName(ev.LogEvent.Level)
	default:
		p.kind = partUnknown
	}
	return p, nil
}

func levelName(level orionproto.LogLevel) string {
	switch level {
	case orionproto.LogLevel_DEBUG:
		return "debug"
	case orionproto.LogLevel_INFO:
		return "info"
	case orionproto.LogLevel_WARN:
		return "warn"
	case orionproto.LogLevel_ERROR:
		return "error"
	case orionproto.LogLevel_CRITICAL:
		return "critical"
	}
	return "unknown"
}
