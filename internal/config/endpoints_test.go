package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "endpoints.yaml")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)
	return tmpFile
}

func TestLoadEndpointsFile_Valid(t *testing.T) {
	tmpFile := writeTempConfig(t, `schema_version: v1
endpoints:
  - name: docs-prod
    url: "https://mcp.example.com/sse"
    transport: sse
    enabled: true
    headers:
      Authorization: "Bearer token"
  - name: docs-staging
    url: "https://staging.example.com/mcp"
    transport: http
    enabled: false
`)

	cfg, err := LoadEndpointsFile(tmpFile)
	assert.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "v1", cfg.SchemaVersion)
	require.Len(t, cfg.Endpoints, 2)

	ep := cfg.Endpoints[0]
	assert.Equal(t, "docs-prod", ep.Name)
	assert.Equal(t, "https://mcp.example.com/sse", ep.URL)
	assert.Equal(t, TransportSSE, ep.Transport)
	assert.True(t, ep.Enabled)
	assert.Equal(t, "Bearer token", ep.Headers["Authorization"])
}

func TestLoadEndpointsFile_InvalidSchemaVersion(t *testing.T) {
	tmpFile := writeTempConfig(t, `schema_version: v2
endpoints: []
`)

	_, err := LoadEndpointsFile(tmpFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported schema_version")
}

func TestLoadEndpointsFile_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing_name",
			content: `schema_version: v1
endpoints:
  - url: "https://mcp.example.com/sse"
    enabled: true
`,
			wantErr: "name is required",
		},
		{
			name: "missing_url",
			content: `schema_version: v1
endpoints:
  - name: broken
    enabled: true
`,
			wantErr: "url is required",
		},
		{
			name: "bad_transport",
			content: `schema_version: v1
endpoints:
  - name: broken
    url: "https://mcp.example.com"
    transport: websocket
    enabled: true
`,
			wantErr: "unsupported transport",
		},
		{
			name: "duplicate_names",
			content: `schema_version: v1
endpoints:
  - name: docs
    url: "https://a.example.com/sse"
    enabled: true
  - name: docs
    url: "https://b.example.com/sse"
    enabled: true
`,
			wantErr: "duplicate endpoint name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpFile := writeTempConfig(t, tt.content)
			_, err := LoadEndpointsFile(tmpFile)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEndpointsFile_NotFound(t *testing.T) {
	_, err := LoadEndpointsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestEndpointsFile_Lookup(t *testing.T) {
	f := &EndpointsFile{
		SchemaVersion: "v1",
		Endpoints: []EndpointConfig{
			{Name: "up", URL: "https://up.example.com/sse", Enabled: true},
			{Name: "down", URL: "https://down.example.com/sse", Enabled: false},
		},
	}

	ep, err := f.Lookup("up")
	require.NoError(t, err)
	assert.Equal(t, "https://up.example.com/sse", ep.URL)

	_, err = f.Lookup("down")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")

	_, err = f.Lookup("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown endpoint")
}

func TestResolveEndpoint_DirectURL(t *testing.T) {
	ep, err := ResolveEndpoint("https://mcp.example.com/sse", "", "")
	require.NoError(t, err)
	assert.Equal(t, "https://mcp.example.com/sse", ep.URL)
	assert.Equal(t, TransportSSE, ep.Transport)

	ep, err = ResolveEndpoint("https://mcp.example.com/mcp", "http", "")
	require.NoError(t, err)
	assert.Equal(t, TransportHTTP, ep.Transport)

	_, err = ResolveEndpoint("https://mcp.example.com/mcp", "carrier-pigeon", "")
	require.Error(t, err)
}

func TestResolveEndpoint_NamedWithOverride(t *testing.T) {
	tmpFile := writeTempConfig(t, `schema_version: v1
endpoints:
  - name: docs
    url: "https://mcp.example.com/mcp"
    transport: http
    enabled: true
`)

	ep, err := ResolveEndpoint("docs", "", tmpFile)
	require.NoError(t, err)
	assert.Equal(t, TransportHTTP, ep.Transport)

	ep, err = ResolveEndpoint("docs", "sse", tmpFile)
	require.NoError(t, err)
	assert.Equal(t, TransportSSE, ep.Transport)
}

func TestWriteEndpointsFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")

	orig := &EndpointsFile{
		SchemaVersion: "v1",
		Endpoints: []EndpointConfig{
			{
				Name:      "docs",
				URL:       "https://mcp.example.com/sse",
				Transport: TransportSSE,
				Enabled:   true,
				Timeout:   10 * time.Second,
			},
		},
	}

	require.NoError(t, WriteEndpointsFile(path, orig))

	loaded, err := LoadEndpointsFile(path)
	require.NoError(t, err)
	require.Len(t, loaded.Endpoints, 1)
	assert.Equal(t, orig.Endpoints[0].Name, loaded.Endpoints[0].Name)
	assert.Equal(t, orig.Endpoints[0].URL, loaded.Endpoints[0].URL)
}

func TestProxyConfig_Validate(t *testing.T) {
	valid := ProxyConfig{
		Endpoint:       "https://mcp.example.com/sse",
		ListenAddr:     ":8082",
		LocalTransport: "http",
	}
	assert.NoError(t, valid.Validate())

	stdio := ProxyConfig{Endpoint: "docs", LocalTransport: "stdio"}
	assert.NoError(t, stdio.Validate())

	tests := []struct {
		name string
		cfg  ProxyConfig
	}{
		{"empty_endpoint", ProxyConfig{LocalTransport: "stdio"}},
		{"bad_transport", ProxyConfig{Endpoint: "x", LocalTransport: "tcp"}},
		{"http_without_addr", ProxyConfig{Endpoint: "x", LocalTransport: "http"}},
		{"tracing_without_endpoint", ProxyConfig{Endpoint: "x", LocalTransport: "stdio", TracingEnabled: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}
