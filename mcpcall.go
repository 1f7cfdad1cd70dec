// Package mcpcall wraps remote MCP endpoints behind a small call surface.
// Each function dials the endpoint, performs the MCP handshake, runs a
// single operation and folds the outcome into a Result envelope. The
// functions never return a Go error and never panic: dial failures,
// handshake failures, timeouts and protocol errors all surface as
// Result{Success: false, Error: "..."}.
package mcpcall

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	mcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/moolen/mcpcall/internal/client"
	"github.com/moolen/mcpcall/internal/config"
	"github.com/moolen/mcpcall/internal/logging"
)

// CallToolSSE invokes a tool on a remote MCP endpoint over the SSE
// transport and returns the outcome as a Result envelope.
func CallToolSSE(ctx context.Context, p CallToolParams) Result {
	return callTool(ctx, config.TransportSSE, p)
}

// CallToolHTTP invokes a tool on a remote MCP endpoint over the
// streamable-HTTP transport and returns the outcome as a Result envelope.
func CallToolHTTP(ctx context.Context, p CallToolParams) Result {
	return callTool(ctx, config.TransportHTTP, p)
}

// ReadResourceSSE reads a resource from a remote MCP endpoint over the SSE
// transport and returns the outcome as a Result envelope.
func ReadResourceSSE(ctx context.Context, p ReadResourceParams) Result {
	ctx = withRequestID(ctx)

	sess, err := client.Dial(ctx, config.TransportSSE, p.Endpoint, client.Options{
		Headers:          p.Headers,
		Timeout:          p.Timeout,
		MinServerVersion: p.MinServerVersion,
	})
	if err != nil {
		return failure(err)
	}
	defer sess.Close()

	res, err := sess.ReadResource(ctx, p.ResourceURI)
	if err != nil {
		return failure(err)
	}
	return success(res)
}

// GetPromptSSE fetches a prompt from a remote MCP endpoint over the SSE
// transport and returns the outcome as a Result envelope.
func GetPromptSSE(ctx context.Context, p GetPromptParams) Result {
	ctx = withRequestID(ctx)

	sess, err := client.Dial(ctx, config.TransportSSE, p.Endpoint, client.Options{
		Headers:          p.Headers,
		Timeout:          p.Timeout,
		MinServerVersion: p.MinServerVersion,
	})
	if err != nil {
		return failure(err)
	}
	defer sess.Close()

	res, err := sess.GetPrompt(ctx, p.PromptName, p.PromptArgs)
	if err != nil {
		return failure(err)
	}
	return success(res)
}

func callTool(ctx context.Context, tr config.Transport, p CallToolParams) Result {
	ctx = withRequestID(ctx)

	sess, err := client.Dial(ctx, tr, p.Endpoint, client.Options{
		Headers:          p.Headers,
		Timeout:          p.Timeout,
		MinServerVersion: p.MinServerVersion,
	})
	if err != nil {
		return failure(err)
	}
	defer sess.Close()

	res, err := sess.CallTool(ctx, p.ToolName, p.ToolArgs)
	if err != nil {
		return failure(err)
	}
	if res.IsError {
		msg := contentText(res.Content)
		if msg == "" {
			msg = "tool execution failed"
		}
		return Result{Success: false, Error: msg}
	}
	return success(res)
}

// withRequestID stamps a request ID onto the context so log lines from the
// session layer can be correlated. An existing ID is left untouched.
func withRequestID(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Value(logging.TraceIDKey()) != nil {
		return ctx
	}
	return context.WithValue(ctx, logging.TraceIDKey(), uuid.NewString())
}

func failure(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

func success(v any) Result {
	data, err := json.Marshal(v)
	if err != nil {
		return Result{Success: false, Error: "encoding result: " + err.Error()}
	}
	return Result{Success: true, Data: data}
}

// contentText concatenates the text parts of a tool result. Non-text
// content is skipped.
func contentText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := mcp.AsTextContent(c); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
