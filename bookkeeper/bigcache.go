package bookkeeper

import (
	"github.com/allegro/bigcache"
	"github.com/juju/errors"
	"github.com/thapovan-inc/orion-llmobs-relay/util"
	"time"
)

const defaultTTL = 10 * time.Minute

type bigCacheBK struct {
	cache *bigcache.BigCache
}

func (bc *bigCacheBK) init(config util.BookKeeperConfig) error {
	ttl := config.TTL.Duration
	if ttl <= 0 {
		ttl = defaultTTL
	}
	cacheConfig := bigcache.DefaultConfig(ttl)
	cacheConfig.Shards = 64
	cacheConfig.MaxEntriesInWindow = 10000
	cacheConfig.MaxEntrySize = 1024
	var err error
	bc.cache, err = bigcache.NewBigCache(cacheConfig)
	return errors.Trace(err)
}

func (bc *bigCacheBK) get(spanID string) []byte {
	data, err := bc.cache.Get(string(spanKey(spanID)))
	if err != nil {
		return nil
	}
	return data
}

func (bc *bigCacheBK) Remember(spanID string, record []byte) error {
	if state, _ := decodeRecord(bc.get(spanID)); state == stateEnded {
		return nil
	}
	return errors.Trace(bc.cache.Set(string(spanKey(spanID)), encodeRecord(statePending, record)))
}

func (bc *bigCacheBK) Recall(spanID string) ([]byte, bool, error) {
	state, record := decodeRecord(bc.get(spanID))
	if state != statePending {
		return nil, false, nil
	}
	return record, true, nil
}

func (bc *bigCacheBK) MarkEnded(spanID string) error {
	return errors.Trace(bc.cache.Set(string(spanKey(spanID)), []byte{stateEnded}))
}

func (bc *bigCacheBK) Ended(spanID string) bool {
	state, _ := decodeRecord(bc.get(spanID))
	return state == stateEnded
}

func (bc *bigCacheBK) Discard() error {
	return bc.cache.Reset()
}

func (bc *bigCacheBK) Close() error {
	return bc.cache.Reset()
}
