package bookkeeper

import (
	"github.com/dgraph-io/badger"
	"github.com/juju/errors"
	"github.com/thapovan-inc/orion-llmobs-relay/util"
	"go.uber.org/zap"
	"os"
	"time"
)

const gcInterval = 5 * time.Minute

type badgerBK struct {
	db     *badger.DB
	ttl    time.Duration
	ticker *time.Ticker
	done   chan struct{}
}

func (b *badgerBK) init(config util.BookKeeperConfig) error {
	path := config.Dir
	if path == "" {
		path = ".orion/bookkeeper"
	}
	if err := os.MkdirAll(path, 0777); err != nil {
		return errors.Annotatef(err, "unable to create %s", path)
	}
	opts := badger.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.ValueLogFileSize = 64 << 20
	db, err := badger.Open(opts)
	if err != nil {
		return errors.Annotatef(err, "unable to open badger db at %s", path)
	}
	b.db = db
	b.ttl = config.TTL.Duration
	if b.ttl <= 0 {
		b.ttl = defaultTTL
	}
	b.ticker = time.NewTicker(gcInterval)
	b.done = make(chan struct{})
	go b.gcCleanup()
	return nil
}

func (b *badgerBK) read(spanID string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(spanKey(spanID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		value, err := item.Value()
		if err != nil {
			return err
		}
		data = append([]byte(nil), value...)
		return nil
	})
	return data, errors.Trace(err)
}

func (b *badgerBK) write(spanID string, value []byte) error {
	return errors.Trace(b.db.Update(func(txn *badger.Txn) error {
		return txn.SetWithTTL(spanKey(spanID), value, b.ttl)
	}))
}

func (b *badgerBK) Remember(spanID string, record []byte) error {
	data, err := b.read(spanID)
	if err != nil {
		return err
	}
	if state, _ := decodeRecord(data); state == stateEnded {
		return nil
	}
	return b.write(spanID, encodeRecord(statePending, record))
}

func (b *badgerBK) Recall(spanID string) ([]byte, bool, error) {
	data, err := b.read(spanID)
	if err != nil {
		return nil, false, err
	}
	state, record := decodeRecord(data)
	if state != statePending {
		return nil, false, nil
	}
	return record, true, nil
}

func (b *badgerBK) MarkEnded(spanID string) error {
	return b.write(spanID, []byte{stateEnded})
}

func (b *badgerBK) Ended(spanID string) bool {
	logger := util.GetLogger("bookkeeper", "badgerBK::Ended")
	data, err := b.read(spanID)
	if err != nil {
		logger.Warn("Error when trying to read from badger db", zap.Error(err))
		return false
	}
	state, _ := decodeRecord(data)
	return state == stateEnded
}

// Discard removes every remembered span.
func (b *badgerBK) Discard() error {
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, append([]byte(nil), it.Item().Key()...))
		}
		return nil
	})
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(b.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (b *badgerBK) Close() error {
	b.ticker.Stop()
	close(b.done)
	return errors.Trace(b.db.Close())
}

func (b *badgerBK) gcCleanup() {
	logger := util.GetLogger("bookkeeper", "badgerBK::gcCleanup")
	for {
		select {
		case <-b.done:
			return
		case <-b.ticker.C:
		}
		for {
			err := b.db.RunValueLogGC(0.7)
			if err == nil {
				continue
			}
			if err != badger.ErrNoRewrite {
				logger.Warn("Value log GC failed", zap.Error(err))
			}
			break
		}
	}
}
