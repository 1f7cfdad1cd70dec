// Package client implements the MCP client session layer: dialing a remote
// endpoint over the SSE or streamable-HTTP transport, the initialize
// handshake, and the protocol operations the CLI exposes.
package client

import (
	"context"
	"fmt"
	"time"

	goversion "github.com/hashicorp/go-version"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/moolen/mcpcall/internal/config"
	"github.com/moolen/mcpcall/internal/logging"
)

const (
	// DefaultTimeout bounds a single protocol operation when the caller's
	// context carries no deadline.
	DefaultTimeout = 30 * time.Second

	defaultClientName = "mcpcall"
)

// Options configures a session.
type Options struct {
	// Headers are sent with every HTTP request (e.g. Authorization).
	Headers map[string]string

	// Timeout bounds each operation, including the handshake. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	// ClientName and ClientVersion identify this client during the
	// initialize handshake. Empty values get mcpcall defaults.
	ClientName    string
	ClientVersion string

	// MinServerVersion, when set, rejects servers whose advertised version
	// is older. Must be a parseable semantic version.
	MinServerVersion string
}

// Session is an initialized MCP client connection to one remote endpoint.
type Session struct {
	mcp        *mcpclient.Client
	endpoint   string
	transport  config.Transport
	timeout    time.Duration
	serverInfo mcp.Implementation
	logger     *logging.Logger

	// streamCancel tears down the transport's stream context (the SSE
	// event stream lives for the whole session).
	streamCancel context.CancelFunc
}

// Dial connects to endpoint over the given transport and runs the
// initialize handshake.
func Dial(ctx context.Context, tr config.Transport, endpoint string, opts Options) (*Session, error) {
	switch tr {
	case config.TransportSSE:
		return DialSSE(ctx, endpoint, opts)
	case config.TransportHTTP:
		return DialStreamableHTTP(ctx, endpoint, opts)
	default:
		return nil, fmt.Errorf("unsupported transport %q", tr)
	}
}

// DialSSE connects to an HTTP+SSE endpoint.
func DialSSE(ctx context.Context, endpoint string, opts Options) (*Session, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint must not be empty")
	}

	var sseOpts []transport.ClientOption
	if len(opts.Headers) > 0 {
		sseOpts = append(sseOpts, transport.WithHeaders(opts.Headers))
	}

	c, err := mcpclient.NewSSEMCPClient(endpoint, sseOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSE client for %s: %w", endpoint, err)
	}

	return handshake(ctx, c, config.TransportSSE, endpoint, opts)
}

// DialStreamableHTTP connects to a streamable-HTTP endpoint.
func DialStreamableHTTP(ctx context.Context, endpoint string, opts Options) (*Session, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint must not be empty")
	}

	httpOpts := []transport.StreamableHTTPCOption{
		transport.WithHTTPTimeout(timeoutOrDefault(opts.Timeout)),
	}
	if len(opts.Headers) > 0 {
		httpOpts = append(httpOpts, transport.WithHTTPHeaders(opts.Headers))
	}

	c, err := mcpclient.NewStreamableHttpClient(endpoint, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create streamable HTTP client for %s: %w", endpoint, err)
	}

	return handshake(ctx, c, config.TransportHTTP, endpoint, opts)
}

// handshake starts the transport, runs initialize and validates the
// server's advertised version. The client is closed on any failure.
func handshake(ctx context.Context, c *mcpclient.Client, tr config.Transport, endpoint string, opts Options) (*Session, error) {
	s := &Session{
		mcp:       c,
		endpoint:  endpoint,
		transport: tr,
		timeout:   timeoutOrDefault(opts.Timeout),
		logger:    logging.GetLogger("client." + string(tr)).WithContext(ctx),
	}

	// The SSE transport holds onto the context passed to Start for its
	// persistent event stream, so it must outlive the handshake deadline.
	// The session owns this context and cancels it on Close.
	streamCtx, streamCancel := context.WithCancel(context.WithoutCancel(ctx))
	s.streamCancel = streamCancel

	fail := func(err error) (*Session, error) {
		c.Close()
		streamCancel()
		return nil, err
	}

	if err := c.Start(streamCtx); err != nil {
		return fail(fmt.Errorf("failed to connect to %s: %w", endpoint, err))
	}

	clientName := opts.ClientName
	if clientName == "" {
		clientName = defaultClientName
	}

	// The handshake timeout applies to the initialize exchange only.
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	initResult, err := c.Initialize(opCtx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    clientName,
				Version: opts.ClientVersion,
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		return fail(fmt.Errorf("initialize handshake with %s failed: %w", endpoint, err))
	}

	s.serverInfo = initResult.ServerInfo

	if opts.MinServerVersion != "" {
		if err := validateServerVersion(initResult.ServerInfo, opts.MinServerVersion); err != nil {
			return fail(err)
		}
	}

	s.logger.DebugWithFields("session established",
		logging.Field("endpoint", endpoint),
		logging.Field("server", initResult.ServerInfo.Name),
		logging.Field("server_version", initResult.ServerInfo.Version),
		logging.Field("protocol_version", initResult.ProtocolVersion),
	)

	return s, nil
}

// validateServerVersion checks the advertised server version against the
// configured minimum.
func validateServerVersion(info mcp.Implementation, minRequired string) error {
	minVer, err := goversion.NewVersion(minRequired)
	if err != nil {
		return fmt.Errorf("invalid minimum server version %q: %w", minRequired, err)
	}

	serverVer, err := goversion.NewVersion(info.Version)
	if err != nil {
		return fmt.Errorf("server %s advertised unparseable version %q: %w",
			info.Name, info.Version, err)
	}

	if serverVer.LessThan(minVer) {
		return fmt.Errorf("server %s version %s is below minimum required version %s",
			info.Name, info.Version, minVer.String())
	}

	return nil
}

// opContext returns ctx bounded by the session timeout unless the caller
// already set a deadline.
func (s *Session) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}

// Endpoint returns the endpoint URL this session is connected to.
func (s *Session) Endpoint() string {
	return s.endpoint
}

// Transport returns the transport mode of this session.
func (s *Session) Transport() config.Transport {
	return s.transport
}

// ServerInfo returns the implementation info the server advertised during
// the initialize handshake.
func (s *Session) ServerInfo() mcp.Implementation {
	return s.serverInfo
}

// CallTool invokes a remote tool. args may be nil.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	started := time.Now()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	if args != nil {
		req.Params.Arguments = args
	}

	result, err := s.mcp.CallTool(opCtx, req)
	if err != nil {
		return nil, fmt.Errorf("tool call %q against %s failed: %w", name, s.endpoint, err)
	}

	s.logger.DebugWithFields("tool call finished",
		logging.Field("tool", name),
		logging.Field("duration_ms", time.Since(started).Milliseconds()),
		logging.Field("is_error", result.IsError),
	)

	return result, nil
}

// ReadResource reads a remote resource by URI.
func (s *Session) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri

	result, err := s.mcp.ReadResource(opCtx, req)
	if err != nil {
		return nil, fmt.Errorf("resource read %q against %s failed: %w", uri, s.endpoint, err)
	}

	return result, nil
}

// GetPrompt fetches a remote prompt. args may be nil.
func (s *Session) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	req := mcp.GetPromptRequest{}
	req.Params.Name = name
	if args != nil {
		req.Params.Arguments = args
	}

	result, err := s.mcp.GetPrompt(opCtx, req)
	if err != nil {
		return nil, fmt.Errorf("prompt fetch %q against %s failed: %w", name, s.endpoint, err)
	}

	return result, nil
}

// ListTools lists the tools the remote server exposes.
func (s *Session) ListTools(ctx context.Context) (*mcp.ListToolsResult, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	result, err := s.mcp.ListTools(opCtx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("tool listing against %s failed: %w", s.endpoint, err)
	}
	return result, nil
}

// ListResources lists the resources the remote server exposes.
func (s *Session) ListResources(ctx context.Context) (*mcp.ListResourcesResult, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	result, err := s.mcp.ListResources(opCtx, mcp.ListResourcesRequest{})
	if err != nil {
		return nil, fmt.Errorf("resource listing against %s failed: %w", s.endpoint, err)
	}
	return result, nil
}

// ListPrompts lists the prompts the remote server exposes.
func (s *Session) ListPrompts(ctx context.Context) (*mcp.ListPromptsResult, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	result, err := s.mcp.ListPrompts(opCtx, mcp.ListPromptsRequest{})
	if err != nil {
		return nil, fmt.Errorf("prompt listing against %s failed: %w", s.endpoint, err)
	}
	return result, nil
}

// Ping checks that the remote endpoint still responds.
func (s *Session) Ping(ctx context.Context) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.mcp.Ping(opCtx); err != nil {
		return fmt.Errorf("endpoint %s unreachable: %w", s.endpoint, err)
	}
	return nil
}

// Close tears down the session and its transport stream.
func (s *Session) Close() error {
	err := s.mcp.Close()
	if s.streamCancel != nil {
		s.streamCancel()
	}
	return err
}
