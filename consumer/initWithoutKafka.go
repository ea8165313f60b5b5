// +build !kafka

package consumer

import (
	"github.com/juju/errors"
	"github.com/thapovan-inc/orion-llmobs-relay/util"
	"go.uber.org/zap"
)

func InitConsumerFromConfig() error {
	logger := util.GetLogger("consumer", "InitConsumerFromConfig")
	source := util.GetConfig().EventSourceConfig
	switch source.Type {
	case NATS:
		natsConsumer := NewNatsConsumer(source.NatsConsumerConfig)
		if err := natsConsumer.connect(); err != nil {
			logger.Debug("Error when connecting", zap.Error(err))
			return err
		}
		consumer = natsConsumer
	case LOCAL:
		consumer = NewLocalConsumer()
	default:
		consumer = nil
		return errors.NotSupportedf("event source %q", source.Type)
	}
	return nil
}
