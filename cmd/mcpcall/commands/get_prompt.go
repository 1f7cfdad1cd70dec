package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/moolen/mcpcall"
	"github.com/moolen/mcpcall/internal/client"
	"github.com/moolen/mcpcall/internal/config"
	"github.com/moolen/mcpcall/internal/logging"
)

var promptArgFlags []string

var getPromptCmd = &cobra.Command{
	Use:   "get-prompt <endpoint> <prompt>",
	Short: "Fetch a prompt from a remote MCP endpoint",
	Long: `Fetch a prompt from a remote MCP endpoint and print the result envelope.

Prompt arguments are passed as repeated key=value flags:

  mcpcall get-prompt https://example.com/sse greet --arg name=gopher
  mcpcall get-prompt prod-prompts summarize --arg style=short -o text`,
	Args: cobra.ExactArgs(2),
	Run:  runGetPrompt,
}

func init() {
	addCallFlags(getPromptCmd)
	getPromptCmd.Flags().StringSliceVar(&promptArgFlags, "arg", nil, "Prompt argument, key=value (repeatable)")
}

func runGetPrompt(cmd *cobra.Command, args []string) {
	if err := setupLog(logLevelFlags); err != nil {
		HandleError(err, "Failed to setup logging")
	}
	logger := logging.GetLogger("cli")

	target, err := resolveTarget(args[0])
	HandleError(err, "Failed to resolve endpoint")

	promptArgs, err := parseKeyValues(promptArgFlags)
	HandleError(err, "Failed to parse prompt arguments")

	logger.Debug("Fetching prompt %s from %s (%s)", args[1], target.Endpoint.URL, target.Transport)

	var res mcpcall.Result
	if target.Transport == config.TransportHTTP {
		res = getPromptHTTP(context.Background(), target, args[1], promptArgs)
	} else {
		res = mcpcall.GetPromptSSE(context.Background(), mcpcall.GetPromptParams{
			Endpoint:         target.Endpoint.URL,
			PromptName:       args[1],
			PromptArgs:       promptArgs,
			Headers:          target.Headers,
			Timeout:          target.Timeout,
			MinServerVersion: minServerVersion,
		})
	}

	renderResult(res)
}

// getPromptHTTP covers the streamable-HTTP transport, which the wrapper
// surface does not expose for prompts.
func getPromptHTTP(ctx context.Context, target *callTarget, name string, promptArgs map[string]string) mcpcall.Result {
	sess, err := client.DialStreamableHTTP(ctx, target.Endpoint.URL, client.Options{
		Headers:          target.Headers,
		Timeout:          target.Timeout,
		MinServerVersion: minServerVersion,
	})
	if err != nil {
		return fold(nil, err)
	}
	defer sess.Close()

	return fold(sess.GetPrompt(ctx, name, promptArgs))
}
