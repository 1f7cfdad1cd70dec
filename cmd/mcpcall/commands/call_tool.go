package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/moolen/mcpcall"
	"github.com/moolen/mcpcall/internal/config"
	"github.com/moolen/mcpcall/internal/logging"
)

var toolArgsJSON string

var callToolCmd = &cobra.Command{
	Use:   "call-tool <endpoint> <tool>",
	Short: "Invoke a tool on a remote MCP endpoint",
	Long: `Invoke a tool on a remote MCP endpoint and print the result envelope.

The endpoint argument is either a URL or the name of an endpoint from the
endpoints configuration file. Tool arguments are passed as a JSON object:

  mcpcall call-tool https://example.com/sse search --args '{"query": "golang"}'
  mcpcall call-tool prod-search search --args '{"query": "golang"}' --transport http`,
	Args: cobra.ExactArgs(2),
	Run:  runCallTool,
}

func init() {
	addCallFlags(callToolCmd)
	callToolCmd.Flags().StringVar(&toolArgsJSON, "args", "", "Tool arguments as a JSON object")
}

func runCallTool(cmd *cobra.Command, args []string) {
	if err := setupLog(logLevelFlags); err != nil {
		HandleError(err, "Failed to setup logging")
	}
	logger := logging.GetLogger("cli")

	target, err := resolveTarget(args[0])
	HandleError(err, "Failed to resolve endpoint")

	toolArgs, err := parseToolArgs(toolArgsJSON)
	HandleError(err, "Failed to parse tool arguments")

	logger.Debug("Calling tool %s on %s (%s)", args[1], target.Endpoint.URL, target.Transport)

	params := mcpcall.CallToolParams{
		Endpoint:         target.Endpoint.URL,
		ToolName:         args[1],
		ToolArgs:         toolArgs,
		Headers:          target.Headers,
		Timeout:          target.Timeout,
		MinServerVersion: minServerVersion,
	}

	var res mcpcall.Result
	if target.Transport == config.TransportHTTP {
		res = mcpcall.CallToolHTTP(context.Background(), params)
	} else {
		res = mcpcall.CallToolSSE(context.Background(), params)
	}

	renderResult(res)
}
