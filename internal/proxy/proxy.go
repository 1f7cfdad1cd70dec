// Package proxy mirrors a remote MCP endpoint onto a locally served MCP
// server. Tools, resources and prompts advertised by the upstream are
// re-registered locally with relay handlers, so stdio-only MCP hosts can
// talk to remote SSE or streamable-HTTP endpoints.
package proxy

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	mcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/moolen/mcpcall/internal/client"
	"github.com/moolen/mcpcall/internal/config"
	"github.com/moolen/mcpcall/internal/logging"
)

// DefaultResyncInterval is how often the proxy re-reads the upstream
// capability lists when no interval is configured.
const DefaultResyncInterval = 5 * time.Minute

// Config configures a Proxy.
type Config struct {
	// Upstream is the remote endpoint being mirrored.
	Upstream config.EndpointConfig

	// ResyncInterval is the period between capability resyncs.
	// Zero means DefaultResyncInterval.
	ResyncInterval time.Duration

	// Version is reported to local clients during the handshake.
	Version string

	// Metrics must be non-nil; use NewMetrics with a test registry in tests.
	Metrics *Metrics

	// Tracer records a span per relayed request. Nil falls back to the
	// global tracer provider, which is a no-op unless tracing is enabled.
	Tracer trace.Tracer
}

// Proxy relays MCP operations from a local server to one upstream endpoint.
type Proxy struct {
	mcpServer *server.MCPServer
	metrics   *Metrics
	tracer    trace.Tracer
	logger    *logging.Logger
	resync    time.Duration

	mu       sync.RWMutex
	upstream config.EndpointConfig
	manager  *client.Manager

	// names of tools currently registered locally, for delete reconciliation
	toolNames map[string]struct{}
}

// New builds a Proxy for the given upstream. Call Sync or Run to populate
// the local server before serving it.
func New(cfg Config) (*Proxy, error) {
	if cfg.Upstream.URL == "" {
		return nil, fmt.Errorf("upstream endpoint URL is required")
	}
	if !config.ValidTransport(cfg.Upstream.Transport) {
		return nil, fmt.Errorf("invalid upstream transport %q", cfg.Upstream.Transport)
	}
	if cfg.Metrics == nil {
		return nil, fmt.Errorf("metrics must be provided")
	}
	if cfg.ResyncInterval <= 0 {
		cfg.ResyncInterval = DefaultResyncInterval
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("mcpcall/proxy")
	}

	manager, err := newManager(cfg.Upstream)
	if err != nil {
		return nil, err
	}

	mcpServer := server.NewMCPServer(
		"mcpcall-proxy",
		cfg.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithPromptCapabilities(true),
		server.WithLogging(),
	)

	return &Proxy{
		mcpServer: mcpServer,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
		logger:    logging.GetLogger("proxy"),
		resync:    cfg.ResyncInterval,
		upstream:  cfg.Upstream,
		manager:   manager,
		toolNames: make(map[string]struct{}),
	}, nil
}

// managerCacheSize bounds the session cache. The proxy talks to a single
// upstream, a larger cache only matters across upstream swaps.
const managerCacheSize = 4

func newManager(ep config.EndpointConfig) (*client.Manager, error) {
	return client.NewManager(managerCacheSize, client.Options{
		Headers: ep.Headers,
		Timeout: ep.Timeout,
	})
}

// MCPServer exposes the local server for serving over stdio or HTTP.
func (p *Proxy) MCPServer() *server.MCPServer {
	return p.mcpServer
}

// Upstream returns the currently mirrored endpoint.
func (p *Proxy) Upstream() config.EndpointConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.upstream
}

func (p *Proxy) session(ctx context.Context) (*client.Session, error) {
	p.mu.RLock()
	manager, ep := p.manager, p.upstream
	p.mu.RUnlock()
	return manager.Session(ctx, ep.Transport, ep.URL)
}

func (p *Proxy) invalidateSession() {
	p.mu.RLock()
	manager, ep := p.manager, p.upstream
	p.mu.RUnlock()
	manager.Invalidate(ep.Transport, ep.URL)
}

// UpdateUpstream swaps the mirrored endpoint and resyncs. Existing upstream
// sessions are closed; local clients stay connected throughout. An endpoint
// identical to the current one, headers and timeout included, is a no-op.
func (p *Proxy) UpdateUpstream(ctx context.Context, ep config.EndpointConfig) error {
	if !config.ValidTransport(ep.Transport) {
		return fmt.Errorf("invalid upstream transport %q", ep.Transport)
	}

	p.mu.RLock()
	unchanged := reflect.DeepEqual(ep, p.upstream)
	p.mu.RUnlock()
	if unchanged {
		return nil
	}

	manager, err := newManager(ep)
	if err != nil {
		return err
	}

	p.mu.Lock()
	old := p.manager
	p.manager = manager
	p.upstream = ep
	p.mu.Unlock()
	old.Close()

	p.logger.Info("Upstream changed to %s (%s)", ep.URL, ep.Transport)
	return p.Sync(ctx)
}

// Sync reads the upstream tool, resource and prompt lists and reconciles
// the local server against them. Tools that disappeared upstream are
// deleted locally; resources and prompts are re-registered in place.
func (p *Proxy) Sync(ctx context.Context) error {
	sess, err := p.session(ctx)
	if err != nil {
		p.metrics.ResyncErrorsTotal.Inc()
		return fmt.Errorf("dialing upstream: %w", err)
	}

	tools, err := sess.ListTools(ctx)
	if err != nil {
		p.syncFailed()
		return fmt.Errorf("listing upstream tools: %w", err)
	}

	current := make(map[string]struct{}, len(tools.Tools))
	for _, tool := range tools.Tools {
		current[tool.Name] = struct{}{}
		p.mcpServer.AddTool(tool, p.relayTool())
	}

	p.mu.Lock()
	var removed []string
	for name := range p.toolNames {
		if _, ok := current[name]; !ok {
			removed = append(removed, name)
		}
	}
	p.toolNames = current
	p.mu.Unlock()

	if len(removed) > 0 {
		p.mcpServer.DeleteTools(removed...)
		p.logger.Info("Removed %d tools no longer advertised upstream", len(removed))
	}
	p.metrics.MirroredTools.Set(float64(len(current)))

	resources, err := sess.ListResources(ctx)
	if err != nil {
		p.syncFailed()
		return fmt.Errorf("listing upstream resources: %w", err)
	}
	for _, res := range resources.Resources {
		p.mcpServer.AddResource(res, p.relayResource())
	}

	prompts, err := sess.ListPrompts(ctx)
	if err != nil {
		p.syncFailed()
		return fmt.Errorf("listing upstream prompts: %w", err)
	}
	for _, prompt := range prompts.Prompts {
		p.mcpServer.AddPrompt(prompt, p.relayPrompt())
	}

	p.metrics.ResyncsTotal.Inc()
	p.logger.Debug("Synced upstream: %d tools, %d resources, %d prompts",
		len(tools.Tools), len(resources.Resources), len(prompts.Prompts))
	return nil
}

// syncFailed records a failed resync and drops the session so the next
// attempt re-dials.
func (p *Proxy) syncFailed() {
	p.metrics.ResyncErrorsTotal.Inc()
	p.invalidateSession()
}

// Run resyncs periodically until the context is cancelled. Resync failures
// are logged and retried on the next tick; callers wanting fail-fast
// startup run Sync themselves first.
func (p *Proxy) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.resync)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Sync(ctx); err != nil {
				p.logger.Warn("Upstream resync failed: %v", err)
			}
		}
	}
}

// Close drops all upstream sessions.
func (p *Proxy) Close() {
	p.mu.RLock()
	manager := p.manager
	p.mu.RUnlock()
	manager.Close()
}

// startSpan opens a span for one relayed request, tagged with the operation,
// its target and the upstream endpoint.
func (p *Proxy) startSpan(ctx context.Context, operation, target string) (context.Context, trace.Span) {
	p.mu.RLock()
	upstream := p.upstream.URL
	p.mu.RUnlock()
	return p.tracer.Start(ctx, "proxy."+operation, trace.WithAttributes(
		attribute.String("mcp.operation", operation),
		attribute.String("mcp.target", target),
		attribute.String("mcp.upstream", upstream),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (p *Proxy) relayTool() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (_ *mcp.CallToolResult, err error) {
		ctx, span := p.startSpan(ctx, "call_tool", req.Params.Name)
		defer func() { endSpan(span, err) }()

		timer := prometheus.NewTimer(p.metrics.RequestDuration.WithLabelValues("call_tool"))
		defer timer.ObserveDuration()

		sess, err := p.session(ctx)
		if err != nil {
			p.metrics.RequestsTotal.WithLabelValues("call_tool", "error").Inc()
			return nil, err
		}

		res, err := sess.CallTool(ctx, req.Params.Name, req.GetArguments())
		if err != nil {
			p.metrics.RequestsTotal.WithLabelValues("call_tool", "error").Inc()
			p.invalidateSession()
			return nil, err
		}
		p.metrics.RequestsTotal.WithLabelValues("call_tool", "ok").Inc()
		return res, nil
	}
}

func (p *Proxy) relayResource() server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) (_ []mcp.ResourceContents, err error) {
		ctx, span := p.startSpan(ctx, "read_resource", req.Params.URI)
		defer func() { endSpan(span, err) }()

		timer := prometheus.NewTimer(p.metrics.RequestDuration.WithLabelValues("read_resource"))
		defer timer.ObserveDuration()

		sess, err := p.session(ctx)
		if err != nil {
			p.metrics.RequestsTotal.WithLabelValues("read_resource", "error").Inc()
			return nil, err
		}

		res, err := sess.ReadResource(ctx, req.Params.URI)
		if err != nil {
			p.metrics.RequestsTotal.WithLabelValues("read_resource", "error").Inc()
			p.invalidateSession()
			return nil, err
		}
		p.metrics.RequestsTotal.WithLabelValues("read_resource", "ok").Inc()
		return res.Contents, nil
	}
}

func (p *Proxy) relayPrompt() server.PromptHandlerFunc {
	return func(ctx context.Context, req mcp.GetPromptRequest) (_ *mcp.GetPromptResult, err error) {
		ctx, span := p.startSpan(ctx, "get_prompt", req.Params.Name)
		defer func() { endSpan(span, err) }()

		timer := prometheus.NewTimer(p.metrics.RequestDuration.WithLabelValues("get_prompt"))
		defer timer.ObserveDuration()

		sess, err := p.session(ctx)
		if err != nil {
			p.metrics.RequestsTotal.WithLabelValues("get_prompt", "error").Inc()
			return nil, err
		}

		res, err := sess.GetPrompt(ctx, req.Params.Name, req.Params.Arguments)
		if err != nil {
			p.metrics.RequestsTotal.WithLabelValues("get_prompt", "error").Inc()
			p.invalidateSession()
			return nil, err
		}
		p.metrics.RequestsTotal.WithLabelValues("get_prompt", "ok").Inc()
		return res, nil
	}
}
