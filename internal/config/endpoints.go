package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EndpointsFile represents the top-level structure of the endpoints config
// file. It names remote MCP endpoints so commands can refer to them by name
// instead of repeating URLs and headers.
//
// Example YAML structure:
//
//	schema_version: v1
//	endpoints:
//	  - name: docs-prod
//	    url: "https://mcp.example.com/sse"
//	    transport: sse
//	    enabled: true
//	    headers:
//	      Authorization: "Bearer ..."
//	  - name: docs-staging
//	    url: "https://staging.example.com/mcp"
//	    transport: http
//	    enabled: false
type EndpointsFile struct {
	// SchemaVersion is the explicit config schema version (e.g., "v1")
	SchemaVersion string `yaml:"schema_version"`

	// Endpoints is the list of named endpoints
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig represents a single named endpoint.
type EndpointConfig struct {
	// Name is the unique endpoint name (e.g., "docs-prod")
	Name string `yaml:"name"`

	// URL is the endpoint URL. For SSE this is the event stream URL,
	// for streamable HTTP the MCP endpoint URL.
	URL string `yaml:"url"`

	// Transport is "sse" or "http". Defaults to "sse" when empty.
	Transport Transport `yaml:"transport"`

	// Enabled indicates whether this endpoint may be used.
	// Disabled endpoints fail resolution with a descriptive error.
	Enabled bool `yaml:"enabled"`

	// Headers are sent with every request to this endpoint (e.g., auth).
	Headers map[string]string `yaml:"headers"`

	// Timeout is the per-operation timeout. Zero means the default.
	Timeout time.Duration `yaml:"timeout"`
}

// Validate checks that the EndpointsFile is valid.
// Returns descriptive errors for validation failures.
func (f *EndpointsFile) Validate() error {
	if f.SchemaVersion != "v1" {
		return NewConfigError(fmt.Sprintf(
			"unsupported schema_version: %q (expected \"v1\")",
			f.SchemaVersion,
		))
	}

	seenNames := make(map[string]bool)

	for i, ep := range f.Endpoints {
		if ep.Name == "" {
			return NewConfigError(fmt.Sprintf(
				"endpoint[%d]: name is required",
				i,
			))
		}

		if ep.URL == "" {
			return NewConfigError(fmt.Sprintf(
				"endpoint[%d] (%s): url is required",
				i, ep.Name,
			))
		}

		if ep.Transport != "" && !ValidTransport(ep.Transport) {
			return NewConfigError(fmt.Sprintf(
				"endpoint[%d] (%s): unsupported transport %q (must be \"sse\" or \"http\")",
				i, ep.Name, ep.Transport,
			))
		}

		if seenNames[ep.Name] {
			return NewConfigError(fmt.Sprintf(
				"endpoint[%d]: duplicate endpoint name %q",
				i, ep.Name,
			))
		}
		seenNames[ep.Name] = true
	}

	return nil
}

// Lookup returns the endpoint with the given name, or an error if it is
// unknown or disabled.
func (f *EndpointsFile) Lookup(name string) (*EndpointConfig, error) {
	for i := range f.Endpoints {
		if f.Endpoints[i].Name == name {
			if !f.Endpoints[i].Enabled {
				return nil, NewConfigError(fmt.Sprintf("endpoint %q is disabled", name))
			}
			return &f.Endpoints[i], nil
		}
	}
	return nil, NewConfigError(fmt.Sprintf("unknown endpoint %q", name))
}

// LoadEndpointsFile loads and validates an endpoints configuration file
// using Koanf.
//
// Error cases:
//   - File not found or cannot be read
//   - Invalid YAML syntax
//   - Schema validation failure (unsupported version, missing required
//     fields, duplicate names)
func LoadEndpointsFile(filepath string) (*EndpointsFile, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(filepath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load endpoints config from %q: %w", filepath, err)
	}

	var cfg EndpointsFile
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse endpoints config from %q: %w", filepath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("endpoints config validation failed for %q: %w", filepath, err)
	}

	return &cfg, nil
}

// ResolveEndpoint turns an --endpoint argument into a concrete endpoint.
// A value containing "://" is used directly as an ad-hoc endpoint with the
// given transport; anything else is looked up by name in the endpoints file
// at path. Explicit transport overrides the file's entry.
func ResolveEndpoint(arg, transport, path string) (*EndpointConfig, error) {
	if arg == "" {
		return nil, NewConfigError("endpoint must not be empty")
	}

	if IsURL(arg) {
		tr := Transport(transport)
		if tr == "" {
			tr = TransportSSE
		}
		if !ValidTransport(tr) {
			return nil, NewConfigError(fmt.Sprintf(
				"unsupported transport %q (must be \"sse\" or \"http\")", transport))
		}
		return &EndpointConfig{
			Name:      arg,
			URL:       arg,
			Transport: tr,
			Enabled:   true,
		}, nil
	}

	f, err := LoadEndpointsFile(path)
	if err != nil {
		return nil, err
	}
	ep, err := f.Lookup(arg)
	if err != nil {
		return nil, err
	}
	if transport != "" {
		if !ValidTransport(Transport(transport)) {
			return nil, NewConfigError(fmt.Sprintf(
				"unsupported transport %q (must be \"sse\" or \"http\")", transport))
		}
		override := *ep
		override.Transport = Transport(transport)
		return &override, nil
	}
	if ep.Transport == "" {
		withDefault := *ep
		withDefault.Transport = TransportSSE
		return &withDefault, nil
	}
	return ep, nil
}
