package consumer

import (
	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/juju/errors"
	"github.com/thapovan-inc/orion-llmobs-relay/util"
	"go.uber.org/zap"
	"sync"
	"time"
)

// LocalConsumer delivers frames published in process. It backs the "local" event
// source used when the relay is embedded next to its producers.
type LocalConsumer struct {
	mu         sync.Mutex
	topics     map[string]bool
	dispatch   dispatch
	controlPID *actor.PID
	closed     bool
}

func NewLocalConsumer() *LocalConsumer {
	return &LocalConsumer{topics: make(map[string]bool), dispatch: newDispatch()}
}

func (l *LocalConsumer) connect() error {
	return nil
}

func (l *LocalConsumer) isConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

func (l *LocalConsumer) Subscribe(pid *actor.PID, topics ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.New("local consumer is closed")
	}
	if len(l.topics) > 0 {
		return errors.New("cannot create a new subscription when the existing subscription is active")
	}
	for _, topic := range topics {
		l.topics[topic] = true
	}
	l.dispatch.destination = pid
	l.dispatch.enabled.Store(true)
	return nil
}

// Publish hands a key/value pair to the subscriber of topic. It reports whether the
// message was delivered.
func (l *LocalConsumer) Publish(topic string, key, value []byte) bool {
	l.mu.Lock()
	subscribed := l.topics[topic] && !l.closed
	l.mu.Unlock()
	if !subscribed {
		return false
	}
	return l.dispatch.deliver(&Message{Topic: topic, Key: key, Value: value,
		Timestamp: uint64(time.Now().UnixNano() / 1000)})
}

// PublishFrame decodes a msgpack frame and publishes its content.
func (l *LocalConsumer) PublishFrame(topic string, data []byte) error {
	frame, err := DecodeFrame(data)
	if err != nil {
		return err
	}
	if !l.Publish(topic, frame.Key, frame.Value) {
		util.GetLogger("consumer", "LocalConsumer::PublishFrame").Debug("No subscriber for topic", zap.String("topic", topic))
	}
	return nil
}

func (l *LocalConsumer) GetControlPID() *actor.PID {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.controlPID == nil {
		l.controlPID = spawnControl(l)
	}
	return l.controlPID
}

func (l *LocalConsumer) UnSubscribe() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.topics = make(map[string]bool)
	l.dispatch.enabled.Store(false)
	return nil
}

func (l *LocalConsumer) Close() error {
	l.UnSubscribe()
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

func (l *LocalConsumer) Receive(c actor.Context) {
	switch msg := c.Message().(type) {
	case string:
		switch msg {
		case SigClose:
			l.Close()
		case SigPause:
			l.dispatch.enabled.Store(false)
		case SigResume:
			l.mu.Lock()
			active := len(l.topics) > 0
			l.mu.Unlock()
			l.dispatch.enabled.Store(active)
		}
	}
}
