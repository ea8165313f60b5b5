package util

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
[log]
level = "debug"
format = "console"

[general]
namespace = "orion"
buffer_limit = 250

[llmobs]
site = "datadoghq.eu"
api_key = "from-file"
agentless = false
flush_interval = "250ms"
retry_attempts = 3
retry_initial_interval = "50ms"

[book_keeper]
type = "disk"
ttl = "1m"

[event_source]
type = "nats"

[event_source.nats]
url = "nats://broker:4222"
cluster_id = "c"
client_id = "relay"
group_id = "g"
`

func TestParseConfigOverlaysDefaults(t *testing.T) {
	config, err := ParseConfig(sampleConfig)
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Logger.Level)
	assert.Equal(t, 250, config.General.BufferLimit)
	assert.Equal(t, "llmobs-events", config.General.Topic)
	assert.Equal(t, "datadoghq.eu", config.LLMObs.Site)
	assert.False(t, config.LLMObs.Agentless)
	assert.Equal(t, "http://localhost:8126", config.LLMObs.AgentURL)
	assert.Equal(t, 250*time.Millisecond, config.LLMObs.FlushInterval.Duration)
	assert.Equal(t, 5*time.Second, config.LLMObs.Timeout.Duration)
	assert.Equal(t, 3, config.LLMObs.RetryAttempts)
	assert.Equal(t, 50*time.Millisecond, config.LLMObs.RetryInitialInterval.Duration)
	assert.True(t, config.LLMObs.EvalMetrics)
	assert.Equal(t, "disk", config.BookKeeper.Type)
	assert.Equal(t, ".orion/bookkeeper", config.BookKeeper.Dir)
	assert.Equal(t, time.Minute, config.BookKeeper.TTL.Duration)
	assert.Equal(t, "nats://broker:4222", config.EventSourceConfig.NatsConsumerConfig.URL)
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig("")
	assert.Error(t, err)

	_, err = ParseConfig("[llmobs]\nsite = ")
	assert.Error(t, err)

	_, err = ParseConfig("[llmobs]\nunknown_key = 1")
	assert.Error(t, err)

	_, err = ParseConfig("[general]\nbuffer_limit = 0")
	assert.Error(t, err)

	_, err = ParseConfig("[llmobs]\nflush_interval = \"soon\"")
	assert.Error(t, err)
}

func TestLoadConfigFromFileAppliesEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))
	t.Setenv("DD_API_KEY", "from-env")
	t.Setenv("DD_SITE", "")

	LoadConfigFromFile(path)
	assert.True(t, IsConfigLoaded())
	config := GetConfig()
	assert.Equal(t, "from-env", config.LLMObs.APIKey)
	assert.Equal(t, "datadoghq.eu", config.LLMObs.Site)
}

func TestLoadConfigPanicsOnBadData(t *testing.T) {
	assert.Panics(t, func() { LoadConfig("not toml = = =") })
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)
	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
}
