package commands

import (
	"context"
	"fmt"

	mcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/moolen/mcpcall"
	"github.com/moolen/mcpcall/internal/client"
	"github.com/moolen/mcpcall/internal/logging"
)

// listing aggregates everything an endpoint advertises.
type listing struct {
	ServerName    string         `json:"serverName"`
	ServerVersion string         `json:"serverVersion"`
	Tools         []mcp.Tool     `json:"tools,omitempty"`
	Resources     []mcp.Resource `json:"resources,omitempty"`
	Prompts       []mcp.Prompt   `json:"prompts,omitempty"`
}

var listCmd = &cobra.Command{
	Use:   "list <endpoint> [tools|resources|prompts]",
	Short: "List tools, resources and prompts of a remote MCP endpoint",
	Long: `List what a remote MCP endpoint advertises in a single envelope.
Without a subset argument all three listings are fetched.

  mcpcall list https://example.com/sse
  mcpcall list prod-search tools -o yaml`,
	Args: cobra.RangeArgs(1, 2),
	Run:  runList,
}

func init() {
	addCallFlags(listCmd)
}

func runList(cmd *cobra.Command, args []string) {
	if err := setupLog(logLevelFlags); err != nil {
		HandleError(err, "Failed to setup logging")
	}
	logger := logging.GetLogger("cli")

	target, err := resolveTarget(args[0])
	HandleError(err, "Failed to resolve endpoint")

	subset := ""
	if len(args) == 2 {
		subset = args[1]
		switch subset {
		case "tools", "resources", "prompts":
		default:
			HandleError(fmt.Errorf("unknown listing %q (expected tools, resources or prompts)", subset), "Invalid argument")
		}
	}

	logger.Debug("Listing capabilities of %s (%s)", target.Endpoint.URL, target.Transport)

	renderResult(listEndpoint(context.Background(), target, subset))
}

func listEndpoint(ctx context.Context, target *callTarget, subset string) mcpcall.Result {
	sess, err := client.Dial(ctx, target.Transport, target.Endpoint.URL, client.Options{
		Headers:          target.Headers,
		Timeout:          target.Timeout,
		MinServerVersion: minServerVersion,
	})
	if err != nil {
		return fold(nil, err)
	}
	defer sess.Close()

	info := sess.ServerInfo()
	result := listing{
		ServerName:    info.Name,
		ServerVersion: info.Version,
	}

	// the listings are independent, fetch them concurrently
	g, gctx := errgroup.WithContext(ctx)
	if subset == "" || subset == "tools" {
		g.Go(func() error {
			tools, err := sess.ListTools(gctx)
			if err != nil {
				return err
			}
			result.Tools = tools.Tools
			return nil
		})
	}
	if subset == "" || subset == "resources" {
		g.Go(func() error {
			resources, err := sess.ListResources(gctx)
			if err != nil {
				return err
			}
			result.Resources = resources.Resources
			return nil
		})
	}
	if subset == "" || subset == "prompts" {
		g.Go(func() error {
			prompts, err := sess.ListPrompts(gctx)
			if err != nil {
				return err
			}
			result.Prompts = prompts.Prompts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fold(nil, err)
	}

	return fold(result, nil)
}
