// Package output renders call results for the CLI. It supports machine
// formats (json, yaml) and a human-oriented text format that styles the
// status line and renders extracted markdown when stdout is a terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/moolen/mcpcall"
)

// Format selects how results are written.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// ParseFormat validates a format string from a CLI flag.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	case FormatText:
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected json, yaml or text)", s)
	}
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

const defaultWrapWidth = 100

// Renderer writes Result envelopes to a single destination.
type Renderer struct {
	w      io.Writer
	format Format
	isTTY  bool
	width  int
}

// New builds a Renderer for w. Terminal detection only applies when w is a
// real file descriptor; buffers and pipes always take the plain path.
func New(w io.Writer, format Format) *Renderer {
	r := &Renderer{w: w, format: format, width: defaultWrapWidth}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.isTTY = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			r.width = width
		}
	}
	return r
}

// Render writes the envelope in the configured format.
func (r *Renderer) Render(res mcpcall.Result) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(res)
	case FormatYAML:
		return r.renderYAML(res)
	case FormatText:
		return r.renderText(res)
	default:
		return fmt.Errorf("unknown output format %q", r.format)
	}
}

func (r *Renderer) renderJSON(res mcpcall.Result) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func (r *Renderer) renderYAML(res mcpcall.Result) error {
	doc := map[string]any{"success": res.Success}
	if res.Error != "" {
		doc["error"] = res.Error
	}
	if len(res.Data) > 0 {
		var data any
		if err := json.Unmarshal(res.Data, &data); err != nil {
			return fmt.Errorf("decoding result data: %w", err)
		}
		doc["data"] = data
	}
	return yaml.NewEncoder(r.w).Encode(doc)
}

func (r *Renderer) renderText(res mcpcall.Result) error {
	if !res.Success {
		status := "error: " + res.Error
		if r.isTTY {
			status = errorStyle.Render("✗") + " " + res.Error
		}
		_, err := fmt.Fprintln(r.w, status)
		return err
	}

	if r.isTTY {
		if _, err := fmt.Fprintln(r.w, successStyle.Render("✓")+" "+mutedStyle.Render("ok")); err != nil {
			return err
		}
	}

	text := ExtractText(res.Data)
	if text == "" {
		// nothing textual to show, fall back to the raw payload
		return r.renderJSON(res)
	}
	if r.isTTY {
		if rendered, err := r.renderMarkdown(text); err == nil {
			_, err = fmt.Fprint(r.w, rendered)
			return err
		}
	}
	_, err := fmt.Fprintln(r.w, text)
	return err
}

func (r *Renderer) renderMarkdown(text string) (string, error) {
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(r.width),
	)
	if err != nil {
		return "", err
	}
	return md.Render(text)
}

// ExtractText collects the text parts of a protocol result payload. It walks
// the decoded JSON and gathers "text" string fields in document order, which
// covers tool content, resource contents and prompt messages alike.
func ExtractText(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return ""
	}
	var parts []string
	collectText(decoded, &parts)
	return strings.Join(parts, "\n")
}

func collectText(v any, parts *[]string) {
	switch val := v.(type) {
	case map[string]any:
		if s, ok := val["text"].(string); ok && s != "" {
			*parts = append(*parts, s)
			return
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectText(val[k], parts)
		}
	case []any:
		for _, item := range val {
			collectText(item, parts)
		}
	}
}
