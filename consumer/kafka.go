// +build kafka

package consumer

import (
	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/juju/errors"
	"github.com/thapovan-inc/orion-llmobs-relay/util"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"reflect"
	"runtime"
)

// KafkaConsumer polls a consumer group and forwards plain key/value records.
type KafkaConsumer struct {
	ConfigMap           kafka.ConfigMap
	consumer            *kafka.Consumer
	connected           bool
	polling             *atomic.Bool
	dispatch            dispatch
	controlPID          *actor.PID
	currentSubscription []string
}

func NewKafkaConsumer(configMap kafka.ConfigMap) *KafkaConsumer {
	return &KafkaConsumer{ConfigMap: configMap, polling: atomic.NewBool(false), dispatch: newDispatch()}
}

func (k *KafkaConsumer) connect() error {
	logger := util.GetLogger("consumer", "KafkaConsumer::connect")
	logger.Info("Connecting to kafka broker")
	c, err := kafka.NewConsumer(&k.ConfigMap)
	if err != nil {
		k.connected = false
		return errors.Annotate(err, "unable to connect to kafka broker")
	}
	k.consumer = c
	k.connected = true
	return nil
}

func (k *KafkaConsumer) GetControlPID() *actor.PID {
	if k.controlPID == nil {
		k.controlPID = spawnControl(k)
	}
	return k.controlPID
}

func (k *KafkaConsumer) isConnected() bool {
	return k.connected
}

func (k *KafkaConsumer) rebalanceHandler(consumer *kafka.Consumer, event kafka.Event) error {
	logger := util.GetLogger("consumer", "KafkaConsumer::rebalanceHandler")
	logger.Debug("Received rebalance callback", zap.String("event", event.String()))
	return nil
}

func (k *KafkaConsumer) poll() {
	logger := util.GetLogger("consumer", "KafkaConsumer::poll")
	logger.Debug("Starting poll loop", zap.Strings("topics", k.currentSubscription))
	defer k.polling.Store(false)
	for k.polling.Load() {
		ev := k.consumer.Poll(100)
		switch e := ev.(type) {
		case kafka.AssignedPartitions:
			k.consumer.Assign(e.Partitions)
		case kafka.RevokedPartitions:
			k.consumer.Unassign()
		case *kafka.Message:
			k.dispatch.deliver(&Message{Topic: *e.TopicPartition.Topic, Key: e.Key, Value: e.Value,
				Timestamp: uint64(e.Timestamp.UnixNano() / 1000)})
		case kafka.Error:
			logger.Error("Error event received when listening for messages", zap.String("error", e.String()))
			if k.dispatch.destination != nil {
				k.dispatch.destination.Tell(SigStop)
			}
			return
		default:
			runtime.Gosched()
		}
	}
}

func (k *KafkaConsumer) Subscribe(pid *actor.PID, topics ...string) error {
	if !k.connected {
		if err := k.connect(); err != nil {
			return err
		}
	}
	k.dispatch.destination = pid
	k.dispatch.enabled.Store(true)
	if !reflect.DeepEqual(topics, k.currentSubscription) {
		if err := k.consumer.SubscribeTopics(topics, k.rebalanceHandler); err != nil {
			return errors.Annotatef(err, "unable to subscribe to %v", topics)
		}
		k.currentSubscription = append([]string(nil), topics...)
	}
	k.startPolling()
	return nil
}

func (k *KafkaConsumer) startPolling() {
	if k.polling.CAS(false, true) {
		go k.poll()
		return
	}
	util.GetLogger("consumer", "KafkaConsumer::startPolling").Warn("Poll loop already running")
}

func (k *KafkaConsumer) UnSubscribe() error {
	k.polling.Store(false)
	k.dispatch.enabled.Store(false)
	return k.consumer.Unsubscribe()
}

func (k *KafkaConsumer) Close() error {
	k.polling.Store(false)
	k.dispatch.enabled.Store(false)
	return k.consumer.Close()
}

func (k *KafkaConsumer) Receive(c actor.Context) {
	logger := util.GetLogger("consumer", "KafkaConsumer::Receive")
	switch msg := c.Message().(type) {
	case string:
		switch msg {
		case SigClose:
			k.Close()
		case SigPause:
			logger.Debug("Received sig_pause. Stopping poll loop")
			k.polling.Store(false)
		case SigResume:
			logger.Debug("Received sig_resume. Resuming poll loop")
			k.startPolling()
		}
	}
}
