package writer

import (
	"github.com/juju/errors"
	"github.com/thapovan-inc/orion-llmobs-relay/buffer"
	"github.com/thapovan-inc/orion-llmobs-relay/transport"
	"github.com/thapovan-inc/orion-llmobs-relay/util"
	"time"
)

const (
	DefaultInterval    = time.Second
	DefaultTimeout     = transport.DefaultTimeout
	DefaultBufferLimit = buffer.DefaultCapacity

	// EventSizeLimit is the serialized size at which a span loses its input and output.
	EventSizeLimit = 1 << 20
	// PayloadSizeLimit caps the body of a single post to the span intake.
	PayloadSizeLimit = 5 << 20
)

// Mode selects how spans reach the intake. It cannot change after construction.
type Mode int

const (
	Agentless Mode = iota
	Proxied
)

func (m Mode) String() string {
	if m == Proxied {
		return "proxied"
	}
	return "agentless"
}

type Config struct {
	Site        string
	APIKey      string
	Mode        Mode
	AgentURL    string
	IntakeURL   string
	Interval    time.Duration
	Timeout     time.Duration
	Retry       transport.RetrySettings
	BufferLimit int
}

// ConfigFromSettings maps the [llmobs] section onto a writer Config.
func ConfigFromSettings(settings util.LLMObsConfig, bufferLimit int) Config {
	mode := Proxied
	if settings.Agentless {
		mode = Agentless
	}
	return Config{
		Site:      settings.Site,
		APIKey:    settings.APIKey,
		Mode:      mode,
		AgentURL:  settings.AgentURL,
		IntakeURL: settings.IntakeURL,
		Interval:  settings.FlushInterval.Duration,
		Timeout:   settings.Timeout.Duration,
		Retry: transport.RetrySettings{
			Attempts:        settings.RetryAttempts,
			InitialInterval: settings.RetryInitialInterval.Duration,
			MaxInterval:     settings.RetryMaxInterval.Duration,
		},
		BufferLimit: bufferLimit,
	}
}

func (c Config) withDefaults() Config {
	if c.Site == "" {
		c.Site = transport.DefaultSite
	}
	if c.AgentURL == "" {
		c.AgentURL = transport.DefaultAgentURL
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.BufferLimit <= 0 {
		c.BufferLimit = DefaultBufferLimit
	}
	return c
}

func (c Config) requireAPIKey(writer string) error {
	if c.APIKey == "" {
		return errors.NotValidf("%s writer in %s mode without an API key", writer, Agentless)
	}
	return nil
}
