// Package bookkeeper remembers orion spans whose end event has not arrived yet.
//
// Records are opaque bytes keyed by span ID. Once a span has been emitted it is marked
// ended so a redelivered end event does not emit it twice.
package bookkeeper

import (
	"github.com/juju/errors"
	"github.com/thapovan-inc/orion-llmobs-relay/util"
	"sync"
)

const (
	MEMORY = "memory"
	DISK   = "disk"

	statePending byte = 0x01
	stateEnded   byte = 0x02
)

type BookKeeper interface {
	// Remember stores record as the pending state of spanID.
	Remember(spanID string, record []byte) error
	// Recall returns the pending record of spanID. found is false for unknown and
	// ended spans.
	Recall(spanID string) (record []byte, found bool, err error)
	// MarkEnded drops the pending record and remembers that spanID was emitted.
	MarkEnded(spanID string) error
	Ended(spanID string) bool

	init(config util.BookKeeperConfig) error
	Discard() error
	Close() error
}

func spanKey(spanID string) []byte {
	return append([]byte("s-"), spanID...)
}

func encodeRecord(state byte, record []byte) []byte {
	data := make([]byte, 0, len(record)+1)
	data = append(data, state)
	return append(data, record...)
}

// decodeRecord splits a stored value into its state byte and the record.
func decodeRecord(data []byte) (byte, []byte) {
	if len(data) == 0 {
		return 0, nil
	}
	return data[0], data[1:]
}

func New(config util.BookKeeperConfig) (BookKeeper, error) {
	var b BookKeeper
	switch config.Type {
	case "", MEMORY:
		b = &bigCacheBK{}
	case DISK:
		b = &badgerBK{}
	default:
		return nil, errors.NotSupportedf("book keeper type %q", config.Type)
	}
	if err := b.init(config); err != nil {
		return nil, errors.Annotatef(err, "unable to init %s book keeper", config.Type)
	}
	return b, nil
}

var (
	bk   BookKeeper
	bkMu sync.Mutex
)

func InitBookKeeperFromConfig() error {
	bkMu.Lock()
	defer bkMu.Unlock()
	if bk != nil {
		return nil
	}
	b, err := New(util.GetConfig().BookKeeper)
	if err != nil {
		return err
	}
	bk = b
	return nil
}

func GetBookKeeper() (BookKeeper, error) {
	bkMu.Lock()
	defer bkMu.Unlock()
	if bk == nil {
		return nil, errors.New("book keeper not yet initialized. Try bookkeeper::InitBookKeeperFromConfig")
	}
	return bk, nil
}

func Cleanup() error {
	bkMu.Lock()
	defer bkMu.Unlock()
	if bk == nil {
		return nil
	}
	err := bk.Close()
	bk = nil
	return err
}
