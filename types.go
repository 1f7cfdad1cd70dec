package mcpcall

import (
	"encoding/json"
	"time"
)

// Result is the uniform envelope returned by every wrapper function.
// Success reports whether the remote operation completed; when it is false,
// Error carries a human-readable failure message. Data holds the raw
// protocol result on success and is absent otherwise.
type Result struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// CallToolParams are the parameters for CallToolSSE and CallToolHTTP.
type CallToolParams struct {
	// Endpoint is the remote MCP endpoint URL.
	Endpoint string

	// ToolName is the name of the tool to invoke.
	ToolName string

	// ToolArgs are the tool arguments. May be nil.
	ToolArgs map[string]any

	// Headers are sent with every request to the endpoint. May be nil.
	Headers map[string]string

	// Timeout bounds the whole operation including the handshake.
	// Zero means the client default.
	Timeout time.Duration

	// MinServerVersion, when set, rejects servers advertising an older
	// version during the handshake.
	MinServerVersion string
}

// ReadResourceParams are the parameters for ReadResourceSSE.
type ReadResourceParams struct {
	// Endpoint is the remote MCP endpoint URL.
	Endpoint string

	// ResourceURI identifies the resource to read.
	ResourceURI string

	// Headers are sent with every request to the endpoint. May be nil.
	Headers map[string]string

	// Timeout bounds the whole operation including the handshake.
	Timeout time.Duration

	// MinServerVersion, when set, rejects servers advertising an older
	// version during the handshake.
	MinServerVersion string
}

// GetPromptParams are the parameters for GetPromptSSE.
type GetPromptParams struct {
	// Endpoint is the remote MCP endpoint URL.
	Endpoint string

	// PromptName is the name of the prompt to fetch.
	PromptName string

	// PromptArgs are the prompt arguments. May be nil.
	PromptArgs map[string]string

	// Headers are sent with every request to the endpoint. May be nil.
	Headers map[string]string

	// Timeout bounds the whole operation including the handshake.
	Timeout time.Duration

	// MinServerVersion, when set, rejects servers advertising an older
	// version during the handshake.
	MinServerVersion string
}
