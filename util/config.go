package util

import (
	"github.com/BurntSushi/toml"
	"github.com/juju/errors"
	"io/ioutil"
	"os"
	"time"
)

const (
	defaultSite          = "datadoghq.com"
	defaultAgentURL      = "http://localhost:8126"
	defaultFlushInterval = time.Second
	defaultTimeout       = 5 * time.Second
	defaultPendingTTL    = 10 * time.Minute
)

type RelayConfig struct {
	Logger            LoggerConfig     `toml:"log"`
	BookKeeper        BookKeeperConfig `toml:"book_keeper"`
	General           GeneralConfig    `toml:"general"`
	LLMObs            LLMObsConfig     `toml:"llmobs"`
	EventSourceConfig EventSource      `toml:"event_source"`
	Metrics           MetricsConfig    `toml:"metrics"`
	loaded            bool
}

type GeneralConfig struct {
	Namespace   string `toml:"namespace"`
	Topic       string `toml:"topic"`
	OrionTopic  string `toml:"orion_topic"`
	BufferLimit int    `toml:"buffer_limit"`
}

type BookKeeperConfig struct {
	Type string   `toml:"type"`
	Dir  string   `toml:"dir"`
	TTL  Duration `toml:"ttl"`
}

type LoggerConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type LLMObsConfig struct {
	Site                 string   `toml:"site"`
	APIKey               string   `toml:"api_key"`
	Agentless            bool     `toml:"agentless"`
	AgentURL             string   `toml:"agent_url"`
	IntakeURL            string   `toml:"intake_url"`
	MLApp                string   `toml:"ml_app"`
	FlushInterval        Duration `toml:"flush_interval"`
	Timeout              Duration `toml:"timeout"`
	RetryAttempts        int      `toml:"retry_attempts"`
	RetryInitialInterval Duration `toml:"retry_initial_interval"`
	RetryMaxInterval     Duration `toml:"retry_max_interval"`
	EvalMetrics          bool     `toml:"eval_metrics"`
}

type MetricsConfig struct {
	ListenAddress string `toml:"listen_address"`
}

type NatsConfig struct {
	URL       string `toml:"url"`
	ClientID  string `toml:"client_id"`
	ClusterID string `toml:"cluster_id"`
	GroupID   string `toml:"group_id"`
}

// Duration lets toml files spell intervals as "1s" or "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Annotatef(err, "invalid duration %q", string(text))
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

var loadedConfig RelayConfig

func defaultConfig() RelayConfig {
	return RelayConfig{
		Logger:     LoggerConfig{Level: "info", Format: "json"},
		BookKeeper: BookKeeperConfig{Type: "memory", Dir: ".orion/bookkeeper", TTL: Duration{defaultPendingTTL}},
		General:    GeneralConfig{Topic: "llmobs-events", OrionTopic: "incoming-spans", BufferLimit: 1000},
		LLMObs: LLMObsConfig{
			Site:          defaultSite,
			Agentless:     true,
			AgentURL:      defaultAgentURL,
			FlushInterval: Duration{defaultFlushInterval},
			Timeout:       Duration{defaultTimeout},
			EvalMetrics:   true,
		},
	}
}

func GetConfig() RelayConfig {
	if !loadedConfig.loaded {
		panic("config data not loaded")
	}
	return loadedConfig
}

// IsConfigLoaded reports whether LoadConfig has succeeded in this process.
func IsConfigLoaded() bool {
	return loadedConfig.loaded
}

// ParseConfig decodes tomlData on top of the defaults. It does not consult the
// environment and does not touch the loaded singleton.
func ParseConfig(tomlData string) (RelayConfig, error) {
	config := defaultConfig()
	md, err := toml.Decode(tomlData, &config)
	if err != nil {
		return RelayConfig{}, errors.Annotate(err, "error when parsing toml data")
	}
	if len(md.Keys()) == 0 {
		return RelayConfig{}, errors.New("empty config data")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return RelayConfig{}, errors.Errorf("unknown config keys: %v", undecoded)
	}
	if config.General.BufferLimit <= 0 {
		return RelayConfig{}, errors.NotValidf("buffer_limit %d", config.General.BufferLimit)
	}
	return config, nil
}

func applyEnvironment(config *RelayConfig) {
	if apiKey := os.Getenv("DD_API_KEY"); apiKey != "" {
		config.LLMObs.APIKey = apiKey
	}
	if site := os.Getenv("DD_SITE"); site != "" {
		config.LLMObs.Site = site
	}
}

func LoadConfig(tomlData string) {
	config, err := ParseConfig(tomlData)
	if err != nil {
		panic(err)
	}
	applyEnvironment(&config)
	config.loaded = true
	loadedConfig = config
}

func LoadConfigFromFile(fileName string) {
	tomlData, err := ioutil.ReadFile(fileName)
	if err != nil {
		panic(err)
	}
	LoadConfig(string(tomlData))
}
