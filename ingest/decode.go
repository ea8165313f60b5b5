package ingest

import (
	"bytes"
	"github.com/json-iterator/go"
	"github.com/juju/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// decodeBatch accepts a single JSON object or an array of them.
func decodeBatch[T any](value []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return nil, errors.NotValidf("empty message")
	}
	if trimmed[0] == '[' {
		var batch []T
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, errors.Annotate(err, "unable to decode event batch")
		}
		return batch, nil
	}
	var single T
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, errors.Annotate(err, "unable to decode event")
	}
	return []T{single}, nil
}
