package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/callfocus/internal/config"
	"github.com/jmylchreest/callfocus/internal/model"
)

var errNoClipboard = errors.New("no clipboard command available (install wl-copy, xclip or xsel, or set [clipboard] command)")

const copyTimeout = 5 * time.Second

// payload is one thing the watch view can put on the clipboard.
type payload struct {
	kind string // shown in the status line
	mime string
	data []byte
}

func statePayload(s model.State) (payload, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return payload{kind: "state"}, fmt.Errorf("failed to marshal state: %w", err)
	}
	return payload{kind: "state", mime: "application/json", data: data}, nil
}

func historyPayload(ts []model.Transition) (payload, error) {
	if ts == nil {
		ts = []model.Transition{}
	}
	data, err := yaml.Marshal(ts)
	if err != nil {
		return payload{kind: "history"}, fmt.Errorf("failed to marshal history: %w", err)
	}
	return payload{kind: "history", mime: "application/yaml", data: data}, nil
}

// clipboardTool is a known clipboard writer and its MIME type flag.
type clipboardTool struct {
	argv     []string
	typeFlag string // "" when the tool takes no type
}

// Wayland first, then X11
var clipboardTools = []clipboardTool{
	{argv: []string{"wl-copy"}, typeFlag: "--type"},
	{argv: []string{"xclip", "-selection", "clipboard"}, typeFlag: "-t"},
	{argv: []string{"xsel", "--clipboard", "--input"}},
}

// clipboard writes payloads through an external command, resolved once
// when the watch view starts.
type clipboard struct {
	tool clipboardTool
}

// newClipboard uses the configured command verbatim, or the first known tool
// found by lookPath.
func newClipboard(cfg *config.Config, lookPath func(string) (string, error)) clipboard {
	if cfg != nil && cfg.Clipboard.Command != "" {
		return clipboard{tool: clipboardTool{argv: strings.Fields(cfg.Clipboard.Command)}}
	}
	for _, tool := range clipboardTools {
		if _, err := lookPath(tool.argv[0]); err == nil {
			return clipboard{tool: tool}
		}
	}
	return clipboard{}
}

func (c clipboard) available() bool {
	return len(c.tool.argv) > 0
}

// args returns the command line that copies p.
func (c clipboard) args(p payload) []string {
	argv := append([]string(nil), c.tool.argv...)
	if c.tool.typeFlag != "" && p.mime != "" {
		argv = append(argv, c.tool.typeFlag, p.mime)
	}
	return argv
}

// copy pipes p into the clipboard command.
func (c clipboard) copy(ctx context.Context, p payload) error {
	if !c.available() {
		return errNoClipboard
	}

	ctx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()

	argv := c.args(p)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(string(p.data))
	if out, err := cmd.CombinedOutput(); err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}
