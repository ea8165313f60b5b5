package consumer

import (
	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/juju/errors"
	"github.com/nats-io/go-nats-streaming"
	"github.com/nats-io/go-nats-streaming/pb"
	"github.com/thapovan-inc/orion-llmobs-relay/util"
	"go.uber.org/zap"
	"sync"
)

// NatsConsumer reads frames from NATS streaming queue subscriptions, one per topic,
// and acknowledges each message once it has been handed to the destination.
type NatsConsumer struct {
	URL       string
	ClusterID string
	ClientID  string
	groupID   string
	nc        stan.Conn

	mu            sync.Mutex
	topics        []string
	subscriptions map[string]stan.Subscription
	dispatch      dispatch
	controlPID    *actor.PID
}

func NewNatsConsumer(config util.NatsConfig) *NatsConsumer {
	return &NatsConsumer{
		URL:           config.URL,
		ClientID:      config.ClientID,
		ClusterID:     config.ClusterID,
		groupID:       config.GroupID,
		subscriptions: make(map[string]stan.Subscription),
		dispatch:      newDispatch(),
	}
}

func (nc *NatsConsumer) connect() error {
	logger := util.GetLogger("consumer", "NatsConsumer::connect")
	if nc.isConnected() {
		logger.Warn("Attempting to connect to nats server when already connected")
		return nil
	}
	if nc.URL == "" {
		logger.Warn("nats URL not provided. Using default URL", zap.String("defaultURL", stan.DefaultNatsURL))
		nc.URL = stan.DefaultNatsURL
	}
	logger.Info("Connecting", zap.String("url", nc.URL), zap.String("cluster", nc.ClusterID))
	conn, err := stan.Connect(nc.ClusterID, nc.ClientID, stan.NatsURL(nc.URL),
		stan.SetConnectionLostHandler(func(_ stan.Conn, reason error) {
			logger.Error("Connection lost", zap.Error(reason))
			nc.dispatch.enabled.Store(false)
		}))
	if err != nil {
		return errors.Annotatef(err, "unable to connect to nats server at %s", nc.URL)
	}
	nc.nc = conn
	return nil
}

func (nc *NatsConsumer) isConnected() bool {
	return nc.nc != nil && nc.nc.NatsConn().IsConnected()
}

func (nc *NatsConsumer) handle(msg *stan.Msg) {
	logger := util.GetLogger("consumer", "NatsConsumer::handle")
	if !nc.dispatch.enabled.Load() {
		// leave it unacked so the server redelivers after resume
		return
	}
	frame, err := DecodeFrame(msg.Data)
	if err != nil {
		logger.Error("Skipping malformed message", zap.String("topic", msg.Subject),
			zap.Uint64("sequence", msg.Sequence), zap.Error(err))
	} else {
		nc.dispatch.deliver(&Message{Topic: msg.Subject, Key: frame.Key, Value: frame.Value,
			Timestamp: uint64(msg.Timestamp / 1000)})
	}
	if err := msg.Ack(); err != nil {
		logger.Error("Error when trying to ack message", zap.Error(err))
	}
}

func (nc *NatsConsumer) Subscribe(pid *actor.PID, topics ...string) error {
	if len(topics) == 0 {
		return errors.New("no topic to subscribe to")
	}
	if !nc.isConnected() {
		if err := nc.connect(); err != nil {
			return err
		}
	}
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if len(nc.subscriptions) > 0 {
		return errors.New("cannot create a new subscription when the existing subscription is active")
	}
	nc.dispatch.destination = pid
	nc.topics = append([]string(nil), topics...)
	return nc.enableSubs()
}

func (nc *NatsConsumer) enableSubs() error {
	nc.dispatch.enabled.Store(true)
	for _, topic := range nc.topics {
		durable := nc.groupID + "-" + topic
		sub, err := nc.nc.QueueSubscribe(topic, nc.groupID, nc.handle,
			stan.StartAt(pb.StartPosition_LastReceived), stan.DurableName(durable),
			stan.SetManualAckMode(), stan.MaxInflight(64))
		if err != nil {
			nc.closeSubs()
			return errors.Annotatef(err, "unable to subscribe to %s", topic)
		}
		nc.subscriptions[topic] = sub
	}
	return nil
}

func (nc *NatsConsumer) closeSubs() error {
	nc.dispatch.enabled.Store(false)
	var firstErr error
	for topic, sub := range nc.subscriptions {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = errors.Annotatef(err, "unable to close subscription to %s", topic)
		}
		delete(nc.subscriptions, topic)
	}
	return firstErr
}

func (nc *NatsConsumer) GetControlPID() *actor.PID {
	if nc.controlPID == nil {
		nc.controlPID = spawnControl(nc)
	}
	return nc.controlPID
}

func (nc *NatsConsumer) UnSubscribe() error {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.closeSubs()
}

func (nc *NatsConsumer) Close() error {
	logger := util.GetLogger("consumer", "NatsConsumer::Close")
	err := nc.UnSubscribe()
	if nc.nc != nil {
		if closeErr := nc.nc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	if err != nil {
		logger.Error("Unable to close nats connection", zap.Error(err))
	}
	return err
}

func (nc *NatsConsumer) pause() {
	nc.dispatch.enabled.Store(false)
}

func (nc *NatsConsumer) resume() {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if len(nc.subscriptions) == 0 && len(nc.topics) > 0 && nc.isConnected() {
		if err := nc.enableSubs(); err != nil {
			util.GetLogger("consumer", "NatsConsumer::resume").Error("Unable to resubscribe", zap.Error(err))
		}
		return
	}
	nc.dispatch.enabled.Store(true)
}

func (nc *NatsConsumer) Receive(c actor.Context) {
	logger := util.GetLogger("consumer", "NatsConsumer::Receive")
	switch msg := c.Message().(type) {
	case string:
		switch msg {
		case SigClose:
			nc.Close()
		case SigPause:
			logger.Debug("Received sig_pause. Pausing delivery")
			nc.pause()
		case SigResume:
			logger.Debug("Received sig_resume. Resuming delivery")
			nc.resume()
		}
	}
}
