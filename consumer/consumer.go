// Package consumer delivers messages from the configured event source to an actor.
//
// Each source publishes msgpack frames holding a key and a value. The key tells the
// ingest actor how to decode the value.
package consumer

import (
	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/juju/errors"
	"github.com/vmihailenco/msgpack"
	"go.uber.org/atomic"
)

const (
	KAFKA = "kafka"
	NATS  = "nats"
	LOCAL = "local"
)

// Signals understood by a consumer's control actor.
const (
	SigClose  = "sig_close"
	SigPause  = "sig_pause"
	SigResume = "sig_resume"
	// SigStop is sent to the destination when the source fails for good.
	SigStop = "sig_stop"
)

type Consumer interface {
	connect() error
	isConnected() bool
	Subscribe(pid *actor.PID, topics ...string) error
	GetControlPID() *actor.PID
	UnSubscribe() error
	Close() error
}

type Message struct {
	Topic string
	Key   []byte
	Value []byte
	// Timestamp is in microseconds since the epoch.
	Timestamp uint64
}

// Frame is the envelope producers publish on stream based sources.
type Frame struct {
	Key   []byte
	Value []byte
}

func EncodeFrame(key, value []byte) ([]byte, error) {
	data, err := msgpack.Marshal(&Frame{Key: key, Value: value})
	return data, errors.Trace(err)
}

func DecodeFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := msgpack.Unmarshal(data, &frame); err != nil {
		return Frame{}, errors.Annotate(err, "unable to decode message frame")
	}
	return frame, nil
}

// dispatch forwards messages to the destination actor while enabled.
type dispatch struct {
	destination *actor.PID
	enabled     *atomic.Bool
}

func newDispatch() dispatch {
	return dispatch{enabled: atomic.NewBool(false)}
}

func (d *dispatch) deliver(msg *Message) bool {
	if !d.enabled.Load() || d.destination == nil {
		return false
	}
	d.destination.Tell(msg)
	return true
}

var consumer Consumer

func GetConsumer() (Consumer, error) {
	if consumer == nil {
		return nil, errors.New("consumer not yet initialized. Try consumer::InitConsumerFromConfig")
	}
	return consumer, nil
}

func spawnControl(a actor.Actor) *actor.PID {
	props := actor.FromProducer(func() actor.Actor {
		return a
	})
	return actor.Spawn(props)
}
