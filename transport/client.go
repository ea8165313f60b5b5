// Package transport owns the HTTP side of the relay: where a batch goes and how it is
// posted.
package transport

import (
	"fmt"
	"github.com/thapovan-inc/orion-llmobs-relay/encoder"
	"strings"
)

const (
	AgentlessBaseURLFormat  = "https://llmobs-intake.%s"
	SpanEndpoint            = "/api/v2/llmobs"
	EVPProxyPath            = "/evp_proxy/v2"
	EVPSubdomainHeader      = "X-Datadog-EVP-Subdomain"
	EVPSubdomainValue       = "llmobs-intake"
	EvalMetricBaseURLFormat = "https://api.%s"
	EvalMetricEndpoint      = "/api/intake/llm-obs/v1/eval-metric"
	APIKeyHeader            = "DD-API-KEY"
	ContentTypeHeader       = "Content-Type"
	DefaultAgentURL         = "http://localhost:8126"
	DefaultSite             = "datadoghq.com"
)

// Client is one destination for one kind of event. It owns the encoder holding the
// events waiting to be sent there and is used by a single writer.
type Client struct {
	Name    string
	URL     string
	Headers map[string]string
	Encoder *encoder.Encoder
}

func newClient(name, baseURL, endpoint string, headers map[string]string, enc *encoder.Encoder) *Client {
	headers[ContentTypeHeader] = enc.ContentType()
	return &Client{
		Name:    name,
		URL:     strings.TrimRight(baseURL, "/") + endpoint,
		Headers: headers,
		Encoder: enc,
	}
}

// NewAgentlessSpanClient posts spans straight to the intake of site. A non empty
// baseURL replaces the intake host.
func NewAgentlessSpanClient(site, apiKey, baseURL string, enc *encoder.Encoder) *Client {
	if baseURL == "" {
		baseURL = fmt.Sprintf(AgentlessBaseURLFormat, orDefault(site, DefaultSite))
	}
	return newClient("agentless", baseURL, SpanEndpoint, map[string]string{APIKeyHeader: apiKey}, enc)
}

// NewProxiedSpanClient posts spans through the local agent's EVP proxy. The agent adds
// the credentials.
func NewProxiedSpanClient(agentURL string, enc *encoder.Encoder) *Client {
	return newClient("proxied", orDefault(agentURL, DefaultAgentURL), EVPProxyPath+SpanEndpoint,
		map[string]string{EVPSubdomainHeader: EVPSubdomainValue}, enc)
}

func NewEvalMetricClient(site, apiKey, baseURL string, enc *encoder.Encoder) *Client {
	if baseURL == "" {
		baseURL = fmt.Sprintf(EvalMetricBaseURLFormat, orDefault(site, DefaultSite))
	}
	return newClient("eval_metric", baseURL, EvalMetricEndpoint, map[string]string{APIKeyHeader: apiKey}, enc)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
