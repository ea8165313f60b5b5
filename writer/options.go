package writer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/thapovan-inc/orion-llmobs-relay/lifecycle"
	"go.uber.org/zap"
	"net/http"
)

type options struct {
	logger     *zap.Logger
	httpClient *http.Client
	registry   *lifecycle.Registry
	registerer prometheus.Registerer
	syncMode   bool
}

type Option func(*options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithRegistry sets where Start registers the shutdown and reset hooks. The default
// is lifecycle.Default.
func WithRegistry(registry *lifecycle.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithRegisterer exposes the writer counters through registerer.
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = registerer
	}
}

// WithSyncMode makes flushes forced by the payload limit run on the enqueuing goroutine.
func WithSyncMode(syncMode bool) Option {
	return func(o *options) {
		o.syncMode = syncMode
	}
}
