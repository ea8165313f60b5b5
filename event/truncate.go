package event

const (
	MetaInput  = "input"
	MetaOutput = "output"

	DroppedValueText         = "[This value has been dropped because this span's size exceeds the 1MB size limit.]"
	DroppedIOCollectionError = "dropped_io"
)

func droppedValue() Value {
	return Map(map[string]Value{"value": String(DroppedValueText)})
}

// Truncated returns a copy of e with meta.input and meta.output replaced by the
// dropped-value placeholder and the dropped_io collection error recorded once.
// e itself is left untouched.
func (e SpanEvent) Truncated() SpanEvent {
	meta := make(map[string]Value, len(e.Meta)+2)
	for k, v := range e.Meta {
		meta[k] = v
	}
	meta[MetaInput] = droppedValue()
	meta[MetaOutput] = droppedValue()
	e.Meta = meta

	errs := make([]string, 0, len(e.CollectionErrors)+1)
	seen := false
	for _, ce := range e.CollectionErrors {
		if ce == DroppedIOCollectionError {
			seen = true
		}
		errs = append(errs, ce)
	}
	if !seen {
		errs = append(errs, DroppedIOCollectionError)
	}
	e.CollectionErrors = errs
	return e
}

func (e SpanEvent) IsTruncated() bool {
	for _, ce := range e.CollectionErrors {
		if ce == DroppedIOCollectionError {
			return true
		}
	}
	return false
}
