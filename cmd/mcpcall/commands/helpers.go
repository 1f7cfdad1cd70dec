package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/moolen/mcpcall"
	"github.com/moolen/mcpcall/internal/config"
	"github.com/moolen/mcpcall/internal/output"
)

// parseHeaders converts repeated --header K=V flags into a map.
func parseHeaders(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(flags))
	for _, flag := range flags {
		parts := strings.SplitN(flag, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid header %q (expected Name=Value)", flag)
		}
		headers[parts[0]] = parts[1]
	}
	return headers, nil
}

// parseKeyValues converts repeated --arg k=v flags into a string map.
func parseKeyValues(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	args := make(map[string]string, len(flags))
	for _, flag := range flags {
		parts := strings.SplitN(flag, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid argument %q (expected key=value)", flag)
		}
		args[parts[0]] = parts[1]
	}
	return args, nil
}

// parseToolArgs decodes the --args JSON object into tool arguments.
func parseToolArgs(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid --args JSON: %w", err)
	}
	return args, nil
}

// callTarget is the resolved endpoint plus the per-call options derived
// from flags and the endpoints file.
type callTarget struct {
	Endpoint  *config.EndpointConfig
	Headers   map[string]string
	Timeout   time.Duration
	Transport config.Transport
}

// resolveTarget turns the endpoint argument (URL or configured name) and
// the shared flags into a callTarget. CLI headers are merged over the
// endpoint's configured headers.
func resolveTarget(endpointArg string) (*callTarget, error) {
	ep, err := config.ResolveEndpoint(endpointArg, transportFlag, endpointsPath)
	if err != nil {
		return nil, err
	}

	cliHeaders, err := parseHeaders(headerFlags)
	if err != nil {
		return nil, err
	}
	headers := make(map[string]string, len(ep.Headers)+len(cliHeaders))
	for k, v := range ep.Headers {
		headers[k] = v
	}
	for k, v := range cliHeaders {
		headers[k] = v
	}
	if len(headers) == 0 {
		headers = nil
	}

	timeout := ep.Timeout
	if timeoutFlag != "" {
		timeout, err = time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid --timeout: %w", err)
		}
	}

	return &callTarget{
		Endpoint:  ep,
		Headers:   headers,
		Timeout:   timeout,
		Transport: ep.Transport,
	}, nil
}

// fold wraps an operation outcome into the result envelope. The wrapper
// package only exposes the SSE read/prompt paths, the HTTP variants in the
// CLI fold through here instead.
func fold(v any, err error) mcpcall.Result {
	if err != nil {
		return mcpcall.Result{Success: false, Error: err.Error()}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return mcpcall.Result{Success: false, Error: "encoding result: " + err.Error()}
	}
	return mcpcall.Result{Success: true, Data: data}
}

// renderResult writes the envelope to stdout in the selected format.
// Failures are returned in the envelope rather than raised, but the process
// boundary still signals them: an unsuccessful envelope exits 1.
func renderResult(res mcpcall.Result) {
	format, err := output.ParseFormat(outputFlag)
	HandleError(err, "Invalid output format")

	renderer := output.New(os.Stdout, format)
	HandleError(renderer.Render(res), "Failed to render result")

	if !res.Success {
		os.Exit(1)
	}
}

// addCallFlags registers the flags shared by call-tool, read-resource,
// get-prompt and list.
func addCallFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&transportFlag, "transport", "", "Transport override: sse or http (default: endpoint config, sse for raw URLs)")
	cmd.Flags().StringSliceVar(&headerFlags, "header", nil, "HTTP header sent with every request, Name=Value (repeatable)")
	cmd.Flags().StringVar(&timeoutFlag, "timeout", "", "Per-call timeout, e.g. 30s (default: endpoint config or client default)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "json", "Output format: json, yaml or text")
	cmd.Flags().StringVar(&minServerVersion, "min-server-version", "", "Reject servers advertising an older version (optional)")
}
