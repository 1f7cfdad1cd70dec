package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/moolen/mcpcall/internal/config"
	"github.com/moolen/mcpcall/internal/logging"
	"github.com/moolen/mcpcall/internal/proxy"
	"github.com/moolen/mcpcall/internal/tracing"
)

var (
	proxyUpstream       string
	proxyHTTPAddr       string
	proxyLocalTransport string
	proxyEndpointPath   string
	proxyResyncInterval time.Duration
	proxyWatchEndpoints bool
	tracingEnabled      bool
	tracingEndpoint     string
	tracingTLSCAPath    string
	tracingTLSInsecure  bool
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Serve a local MCP server that relays to a remote endpoint",
	Long: `Serve a local MCP server that mirrors and relays a remote MCP endpoint.

Tools, resources and prompts advertised by the upstream are re-registered on
the local server; calls against them are relayed over the upstream transport.
This lets stdio-only MCP hosts talk to remote SSE or streamable-HTTP servers.

Supports two local transport modes:
  - http: HTTP server mode with /health and /metrics endpoints (default)
  - stdio: Standard input/output mode (for subprocess-based MCP clients)

When the upstream is referenced by name, the endpoints file is watched and
upstream changes are applied without restarting.`,
	Run: runProxy,
}

func init() {
	proxyCmd.Flags().StringVar(&proxyUpstream, "endpoint", getEnv("MCPCALL_PROXY_ENDPOINT", ""), "Upstream endpoint URL or name from the endpoints file (required)")
	proxyCmd.Flags().StringVar(&transportFlag, "transport", "", "Upstream transport override: sse or http")
	proxyCmd.Flags().StringVar(&proxyHTTPAddr, "http-addr", getEnv("MCPCALL_PROXY_HTTP_ADDR", ":8082"), "HTTP server address (host:port)")
	proxyCmd.Flags().StringVar(&proxyLocalTransport, "local-transport", "http", "Local transport type: http or stdio")
	proxyCmd.Flags().StringVar(&proxyEndpointPath, "mcp-endpoint", getEnv("MCPCALL_PROXY_MCP_ENDPOINT", "/mcp"), "HTTP endpoint path for MCP requests")
	proxyCmd.Flags().DurationVar(&proxyResyncInterval, "resync-interval", proxy.DefaultResyncInterval, "How often to re-read the upstream capability lists")
	proxyCmd.Flags().BoolVar(&proxyWatchEndpoints, "watch", true, "Watch the endpoints file and apply upstream changes without restart")
	proxyCmd.Flags().BoolVar(&tracingEnabled, "tracing-enabled", false, "Enable OpenTelemetry trace export")
	proxyCmd.Flags().StringVar(&tracingEndpoint, "tracing-endpoint", getEnv("MCPCALL_TRACING_ENDPOINT", ""), "OTLP gRPC endpoint for trace export")
	proxyCmd.Flags().StringVar(&tracingTLSCAPath, "tracing-tls-ca", "", "CA certificate for TLS verification of the tracing endpoint")
	proxyCmd.Flags().BoolVar(&tracingTLSInsecure, "tracing-tls-insecure", false, "Skip TLS certificate verification for the tracing endpoint")
}

func runProxy(cmd *cobra.Command, args []string) {
	if err := setupLog(logLevelFlags); err != nil {
		HandleError(err, "Failed to setup logging")
	}
	logger := logging.GetLogger("proxy")

	proxyCfg := &config.ProxyConfig{
		Endpoint:           proxyUpstream,
		EndpointsPath:      endpointsPath,
		ListenAddr:         proxyHTTPAddr,
		LocalTransport:     proxyLocalTransport,
		ResyncInterval:     proxyResyncInterval,
		TracingEnabled:     tracingEnabled,
		TracingEndpoint:    tracingEndpoint,
		TracingTLSCAPath:   tracingTLSCAPath,
		TracingTLSInsecure: tracingTLSInsecure,
	}
	HandleError(proxyCfg.Validate(), "Invalid proxy configuration")

	// Named upstreams resolve against the endpoints file; create an empty
	// default on first run.
	if !config.IsURL(proxyUpstream) && endpointsPath != "" {
		if _, err := os.Stat(endpointsPath); os.IsNotExist(err) {
			logger.Info("Creating default endpoints config file: %s", endpointsPath)
			defaultConfig := &config.EndpointsFile{
				SchemaVersion: "v1",
				Endpoints:     []config.EndpointConfig{},
			}
			HandleError(config.WriteEndpointsFile(endpointsPath, defaultConfig), "Failed to create default endpoints config")
		}
	}

	upstream, err := config.ResolveEndpoint(proxyUpstream, transportFlag, endpointsPath)
	HandleError(err, "Failed to resolve upstream endpoint")
	logger.Info("Starting mcpcall proxy (local: %s, upstream: %s via %s)",
		proxyLocalTransport, upstream.URL, upstream.Transport)

	tracingProvider, err := tracing.NewProvider(tracing.Config{
		Enabled:     proxyCfg.TracingEnabled,
		Endpoint:    proxyCfg.TracingEndpoint,
		TLSCAPath:   proxyCfg.TracingTLSCAPath,
		TLSInsecure: proxyCfg.TracingTLSInsecure,
	})
	HandleError(err, "Failed to initialize tracing")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	p, err := proxy.New(proxy.Config{
		Upstream:       *upstream,
		ResyncInterval: proxyCfg.ResyncInterval,
		Version:        Version,
		Metrics:        proxy.NewMetrics(registry, upstream.URL),
		Tracer:         tracingProvider.Tracer("proxy"),
	})
	HandleError(err, "Failed to create proxy")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received signal: %v, shutting down gracefully...", sig)
		cancel()
	}()

	// Hot reload only applies to named upstreams, a raw URL has no file entry.
	var watcher *config.EndpointsWatcher
	if proxyWatchEndpoints && !config.IsURL(proxyUpstream) {
		watcher, err = config.NewEndpointsWatcher(config.EndpointsWatcherConfig{
			FilePath: endpointsPath,
		}, func(cfg *config.EndpointsFile) error {
			ep, err := cfg.Lookup(proxyUpstream)
			if err != nil {
				return err
			}
			if transportFlag != "" {
				ep.Transport = config.Transport(transportFlag)
			}
			if ep.Transport == "" {
				ep.Transport = config.TransportSSE
			}
			// UpdateUpstream ignores endpoints identical to the current one.
			return p.UpdateUpstream(ctx, *ep)
		})
		HandleError(err, "Failed to create endpoints watcher")
		HandleError(watcher.Start(ctx), "Failed to start endpoints watcher")
		logger.Info("Watching %s for upstream changes", endpointsPath)
	}

	// Initial sync happens before serving so a dead upstream fails fast.
	HandleError(p.Sync(ctx), "Failed to sync upstream endpoint")

	proxyErrCh := make(chan error, 1)
	go func() {
		proxyErrCh <- p.Run(ctx)
	}()

	switch proxyLocalTransport {
	case "http":
		serveHTTP(ctx, logger, p.MCPServer(), registry, proxyErrCh)
	case "stdio":
		logger.Info("Starting stdio transport")
		if err := server.ServeStdio(p.MCPServer()); err != nil {
			logger.Error("Stdio transport error: %v", err)
		}
	default:
		logger.Fatal("Invalid local transport type: %s (must be 'http' or 'stdio')", proxyLocalTransport)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			logger.Error("Error stopping endpoints watcher: %v", err)
		}
	}
	p.Close()
	if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down tracing: %v", err)
	}
	logger.Info("Proxy stopped")
}

// serveHTTP runs the streamable-HTTP transport alongside /health and
// /metrics until the context is cancelled or the server fails.
func serveHTTP(ctx context.Context, logger *logging.Logger, mcpServer *server.MCPServer, registry *prometheus.Registry, proxyErrCh <-chan error) {
	endpointPath := proxyEndpointPath
	if endpointPath == "" {
		endpointPath = "/mcp"
	} else if endpointPath[0] != '/' {
		endpointPath = "/" + endpointPath
	}

	logger.Info("Starting HTTP server on %s (endpoint: %s)", proxyHTTPAddr, endpointPath)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpSrv := &http.Server{
		Addr:              proxyHTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second, // Prevent Slowloris attacks
	}

	// Stateless session management keeps the proxy compatible with clients
	// that do not track session IDs.
	streamableServer := server.NewStreamableHTTPServer(
		mcpServer,
		server.WithEndpointPath(endpointPath),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)
	mux.Handle(endpointPath, streamableServer)

	errCh := make(chan error, 1)
	go func() {
		if err := streamableServer.Start(proxyHTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("Server error: %v", err)
		os.Exit(1)
	case err := <-proxyErrCh:
		if err != nil {
			logger.Error("Upstream sync error: %v", err)
			os.Exit(1)
		}
	}

	logger.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := streamableServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown: %v", err)
	}
}
