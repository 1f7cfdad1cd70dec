// Package config holds mcpcall configuration: the named-endpoints file and
// the proxy runtime configuration.
package config

import (
	"strings"
	"time"
)

// Transport identifies a remote MCP transport mode.
type Transport string

const (
	// TransportSSE is the HTTP+SSE transport (GET event stream plus POST
	// message endpoint).
	TransportSSE Transport = "sse"
	// TransportHTTP is the streamable HTTP transport (single MCP endpoint).
	TransportHTTP Transport = "http"
)

// ValidTransport reports whether t names a supported transport.
func ValidTransport(t Transport) bool {
	switch t {
	case TransportSSE, TransportHTTP:
		return true
	}
	return false
}

// ProxyConfig holds configuration for the proxy subcommand.
type ProxyConfig struct {
	// Endpoint is the upstream endpoint URL or the name of an entry in the
	// endpoints file
	Endpoint string

	// EndpointsPath is the path to the endpoints YAML file
	EndpointsPath string

	// ListenAddr is the HTTP listen address (host:port) in HTTP mode
	ListenAddr string

	// LocalTransport is the transport the proxy serves locally: "http" or "stdio"
	LocalTransport string

	// ResyncInterval is how often the upstream tool list is refreshed
	ResyncInterval time.Duration

	// TracingEnabled indicates whether OpenTelemetry tracing is enabled
	TracingEnabled bool

	// TracingEndpoint is the OTLP gRPC endpoint for trace export
	TracingEndpoint string

	// TracingTLSCAPath is the path to the CA certificate for TLS verification
	TracingTLSCAPath string

	// TracingTLSInsecure skips TLS certificate verification
	TracingTLSInsecure bool
}

// Validate checks that the proxy configuration is valid.
func (c *ProxyConfig) Validate() error {
	if c.Endpoint == "" {
		return NewConfigError("Endpoint must not be empty")
	}

	switch c.LocalTransport {
	case "http":
		if c.ListenAddr == "" {
			return NewConfigError("ListenAddr must not be empty in http mode")
		}
	case "stdio":
		// No listen address needed.
	default:
		return NewConfigError("LocalTransport must be 'http' or 'stdio'")
	}

	if c.ResyncInterval < 0 {
		return NewConfigError("ResyncInterval must not be negative")
	}

	if c.TracingEnabled && c.TracingEndpoint == "" {
		return NewConfigError("TracingEndpoint must be set when tracing is enabled")
	}

	return nil
}

// IsURL reports whether s looks like an endpoint URL rather than a name
// from the endpoints file.
func IsURL(s string) bool {
	return strings.Contains(s, "://")
}

// ConfigError represents a configuration error
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return e.message
}
