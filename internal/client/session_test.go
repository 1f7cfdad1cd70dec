package client

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/mcpcall/internal/config"
)

// newTestMCPServer builds an in-process MCP server with one tool, one
// resource and one prompt.
func newTestMCPServer() *server.MCPServer {
	s := server.NewMCPServer("test-server", "1.2.3",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, true),
		server.WithPromptCapabilities(true),
	)

	s.AddTool(mcp.NewTool("echo",
		mcp.WithDescription("echoes back the message"),
		mcp.WithString("message", mcp.Description("text to echo")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("echo: " + req.GetString("message", "nothing")), nil
	})

	s.AddTool(mcp.NewTool("always_fails",
		mcp.WithDescription("reports a tool-level error"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("deliberate failure"), nil
	})

	s.AddResource(mcp.NewResource("docs://readme", "readme",
		mcp.WithResourceDescription("project readme"),
		mcp.WithMIMEType("text/markdown"),
	), func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "docs://readme",
				MIMEType: "text/markdown",
				Text:     "# readme",
			},
		}, nil
	})

	s.AddPrompt(mcp.NewPrompt("greet",
		mcp.WithPromptDescription("greeting prompt"),
		mcp.WithArgument("name", mcp.ArgumentDescription("who to greet")),
	), func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		name := req.Params.Arguments["name"]
		if name == "" {
			name = "world"
		}
		return mcp.NewGetPromptResult("greeting", []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent("hello "+name)),
		}), nil
	})

	return s
}

func TestDialSSE_CallTool(t *testing.T) {
	ts := server.NewTestServer(newTestMCPServer())
	defer ts.Close()

	sess, err := DialSSE(context.Background(), ts.URL+"/sse", Options{})
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, "test-server", sess.ServerInfo().Name)
	assert.Equal(t, config.TransportSSE, sess.Transport())

	result, err := sess.CallTool(context.Background(), "echo", map[string]any{"message": "hi"})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.NotEmpty(t, result.Content)

	tc, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Equal(t, "echo: hi", tc.Text)
}

func TestDialSSE_StreamSurvivesDialContext(t *testing.T) {
	ts := server.NewTestServer(newTestMCPServer())
	defer ts.Close()

	// The SSE event stream must not be tied to the dial context: once the
	// handshake returns, cancelling it must leave the session usable.
	dialCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	sess, err := DialSSE(dialCtx, ts.URL+"/sse", Options{})
	require.NoError(t, err)
	defer sess.Close()
	cancel()

	for i := 0; i < 3; i++ {
		opCtx, opCancel := context.WithTimeout(context.Background(), 3*time.Second)
		result, err := sess.CallTool(opCtx, "echo", map[string]any{"message": "hi"})
		opCancel()
		require.NoError(t, err)
		require.False(t, result.IsError)
	}

	opCtx, opCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer opCancel()
	tools, err := sess.ListTools(opCtx)
	require.NoError(t, err)
	assert.NotEmpty(t, tools.Tools)
}

func TestDialStreamableHTTP_CallTool(t *testing.T) {
	ts := server.NewTestStreamableHTTPServer(newTestMCPServer())
	defer ts.Close()

	sess, err := DialStreamableHTTP(context.Background(), ts.URL, Options{})
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, config.TransportHTTP, sess.Transport())

	// nil args must be accepted
	result, err := sess.CallTool(context.Background(), "echo", nil)
	require.NoError(t, err)
	require.False(t, result.IsError)

	tc, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Equal(t, "echo: nothing", tc.Text)
}

func TestSession_ToolLevelError(t *testing.T) {
	ts := server.NewTestStreamableHTTPServer(newTestMCPServer())
	defer ts.Close()

	sess, err := DialStreamableHTTP(context.Background(), ts.URL, Options{})
	require.NoError(t, err)
	defer sess.Close()

	result, err := sess.CallTool(context.Background(), "always_fails", nil)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSession_ReadResource(t *testing.T) {
	ts := server.NewTestServer(newTestMCPServer())
	defer ts.Close()

	sess, err := DialSSE(context.Background(), ts.URL+"/sse", Options{})
	require.NoError(t, err)
	defer sess.Close()

	result, err := sess.ReadResource(context.Background(), "docs://readme")
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)

	trc, ok := mcp.AsTextResourceContents(result.Contents[0])
	require.True(t, ok)
	assert.Equal(t, "# readme", trc.Text)
	assert.Equal(t, "text/markdown", trc.MIMEType)
}

func TestSession_GetPrompt(t *testing.T) {
	ts := server.NewTestServer(newTestMCPServer())
	defer ts.Close()

	sess, err := DialSSE(context.Background(), ts.URL+"/sse", Options{})
	require.NoError(t, err)
	defer sess.Close()

	// nil args must be accepted
	result, err := sess.GetPrompt(context.Background(), "greet", nil)
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)

	result, err = sess.GetPrompt(context.Background(), "greet", map[string]string{"name": "ops"})
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	tc, ok := mcp.AsTextContent(result.Messages[0].Content)
	require.True(t, ok)
	assert.Equal(t, "hello ops", tc.Text)
}

func TestSession_Listings(t *testing.T) {
	ts := server.NewTestStreamableHTTPServer(newTestMCPServer())
	defer ts.Close()

	sess, err := DialStreamableHTTP(context.Background(), ts.URL, Options{})
	require.NoError(t, err)
	defer sess.Close()

	tools, err := sess.ListTools(context.Background())
	require.NoError(t, err)
	assert.Len(t, tools.Tools, 2)

	resources, err := sess.ListResources(context.Background())
	require.NoError(t, err)
	assert.Len(t, resources.Resources, 1)

	prompts, err := sess.ListPrompts(context.Background())
	require.NoError(t, err)
	assert.Len(t, prompts.Prompts, 1)
}

func TestDial_UnreachableEndpoint(t *testing.T) {
	// Port 1 is never listening.
	_, err := DialSSE(context.Background(), "http://127.0.0.1:1/sse", Options{Timeout: 2 * time.Second})
	require.Error(t, err)

	_, err = DialStreamableHTTP(context.Background(), "http://127.0.0.1:1/mcp", Options{Timeout: 2 * time.Second})
	require.Error(t, err)
}

func TestDial_UnsupportedTransport(t *testing.T) {
	_, err := Dial(context.Background(), config.Transport("carrier-pigeon"), "http://127.0.0.1:1", Options{})
	require.Error(t, err)
}

func TestMinServerVersion(t *testing.T) {
	ts := server.NewTestStreamableHTTPServer(newTestMCPServer())
	defer ts.Close()

	// Server advertises 1.2.3.
	sess, err := DialStreamableHTTP(context.Background(), ts.URL, Options{MinServerVersion: "1.0.0"})
	require.NoError(t, err)
	sess.Close()

	_, err = DialStreamableHTTP(context.Background(), ts.URL, Options{MinServerVersion: "2.0.0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below minimum required version")

	_, err = DialStreamableHTTP(context.Background(), ts.URL, Options{MinServerVersion: "not-a-version"})
	require.Error(t, err)
}

func TestManager_ReusesSessions(t *testing.T) {
	ts := server.NewTestStreamableHTTPServer(newTestMCPServer())
	defer ts.Close()

	m, err := NewManager(4, Options{})
	require.NoError(t, err)
	defer m.Close()

	s1, err := m.Session(context.Background(), config.TransportHTTP, ts.URL)
	require.NoError(t, err)

	s2, err := m.Session(context.Background(), config.TransportHTTP, ts.URL)
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	m.Invalidate(config.TransportHTTP, ts.URL)

	s3, err := m.Session(context.Background(), config.TransportHTTP, ts.URL)
	require.NoError(t, err)
	assert.NotSame(t, s1, s3)
}
