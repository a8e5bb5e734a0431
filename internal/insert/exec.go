package insert

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sbpk516/signalhub-dictation/internal/hypr"
)

// CommandBridge types text through an external tool (for example wtype).
// Before typing it confirms an active window exists so keystrokes land on a
// real focus target rather than the desktop.
type CommandBridge struct {
	argv       []string
	probeFocus bool
}

// NewCommandBridge builds a bridge around argv. probeFocus enables the
// active-window check and should be true under Hyprland.
func NewCommandBridge(argv []string, probeFocus bool) *CommandBridge {
	return &CommandBridge{argv: argv, probeFocus: probeFocus}
}

// TypeText simulates keystrokes for text via the configured command.
func (b *CommandBridge) TypeText(ctx context.Context, text string) error {
	if len(b.argv) == 0 {
		return fmt.Errorf("bridge argv cannot be empty")
	}

	if b.probeFocus {
		if _, err := activeWindowWithRetry(ctx, 5, 10*time.Millisecond); err != nil {
			return err
		}
	}

	typeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return runCommandWithInput(typeCtx, b.argv, text)
}

// CommandClipboard writes text to the system clipboard through an external
// tool (for example wl-copy).
type CommandClipboard struct {
	argv []string
}

// NewCommandClipboard builds a clipboard writer around argv.
func NewCommandClipboard(argv []string) *CommandClipboard {
	return &CommandClipboard{argv: argv}
}

// Write sends text to the clipboard command over stdin.
func (c *CommandClipboard) Write(ctx context.Context, text string) error {
	if len(c.argv) == 0 {
		return fmt.Errorf("clipboard argv cannot be empty")
	}

	writeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := runCommandWithInput(writeCtx, c.argv, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	return nil
}

// HostEnvironment is the desktop-session environment: there is no in-process
// focused widget to splice into, so only the bridge and clipboard strategies
// apply.
type HostEnvironment struct {
	bridge    Bridge
	clipboard Clipboard
}

// NewHostEnvironment builds the environment from optional bridge and
// clipboard backends; nil disables the corresponding strategy.
func NewHostEnvironment(bridge Bridge, clipboard Clipboard) *HostEnvironment {
	return &HostEnvironment{bridge: bridge, clipboard: clipboard}
}

func (e *HostEnvironment) FocusedInput() InputTarget       { return nil }
func (e *HostEnvironment) FocusedEditable() EditableTarget { return nil }

func (e *HostEnvironment) Bridge() Bridge {
	if e.bridge == nil {
		return nil
	}
	return e.bridge
}

func (e *HostEnvironment) Clipboard() Clipboard {
	if e.clipboard == nil {
		return nil
	}
	return e.clipboard
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}

func activeWindowWithRetry(ctx context.Context, attempts int, delay time.Duration) (hypr.ActiveWindow, error) {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		window, err := hypr.QueryActiveWindow(ctx)
		if err == nil && strings.TrimSpace(window.Address) != "" {
			return window, nil
		}
		if err == nil {
			err = fmt.Errorf("active window has no address")
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return hypr.ActiveWindow{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	return hypr.ActiveWindow{}, fmt.Errorf("resolve active window: %w", lastErr)
}
