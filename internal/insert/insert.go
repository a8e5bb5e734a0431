// Package insert delivers transcript text to the user's focus point through
// an ordered fallback chain: focused input, contenteditable, out-of-process
// typing bridge, clipboard.
package insert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Method names the strategy that delivered the text. Clipboard is explicitly
// distinguished because it does not auto-insert.
type Method string

const (
	MethodInput     Method = "input"
	MethodEditable  Method = "editable"
	MethodBridge    Method = "bridge"
	MethodClipboard Method = "clipboard"
)

// Reason explains a failed insertion.
type Reason string

const (
	ReasonNoTarget        Reason = "no_target"
	ReasonBridgeFailed    Reason = "bridge_failed"
	ReasonClipboardFailed Reason = "clipboard_failed"
)

// Result is the tagged insertion outcome.
type Result struct {
	OK     bool
	Method Method
	Reason Reason
}

// InputTarget is a focused input/textarea-like element exposed by the host UI
// layer: it has a value, a selection range, and a caret.
type InputTarget interface {
	ReadOnly() bool
	Value() string
	Selection() (start, end int)
	SetValue(value string, caret int) error
	// NotifyInput dispatches the synthetic input event host frameworks
	// observe; the resolver calls it exactly once per successful splice.
	NotifyInput()
}

// EditableTarget is a focused contenteditable region.
type EditableTarget interface {
	Focus() error
	InsertText(text string) error
}

// Bridge simulates keystrokes at the OS level from outside the UI process.
type Bridge interface {
	TypeText(ctx context.Context, text string) error
}

// Clipboard writes text to the system clipboard.
type Clipboard interface {
	Write(ctx context.Context, text string) error
}

// Environment supplies the capabilities the strategy chain probes. Any
// accessor may return nil when the capability is absent.
type Environment interface {
	FocusedInput() InputTarget
	FocusedEditable() EditableTarget
	Bridge() Bridge
	Clipboard() Clipboard
}

// strategy pairs a capability probe with its delivery attempt.
type strategy struct {
	method    Method
	canHandle func(Environment) bool
	attempt   func(context.Context, Environment, string) error
}

// Resolver tries each strategy in order; the first success wins.
type Resolver struct {
	logger     *slog.Logger
	env        Environment
	strategies []strategy
}

// NewResolver builds the standard four-strategy chain over env.
func NewResolver(logger *slog.Logger, env Environment) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		logger: logger,
		env:    env,
		strategies: []strategy{
			{method: MethodInput, canHandle: inputApplies, attempt: insertIntoInput},
			{method: MethodEditable, canHandle: editableApplies, attempt: insertIntoEditable},
			{method: MethodBridge, canHandle: bridgeApplies, attempt: typeThroughBridge},
			{method: MethodClipboard, canHandle: clipboardApplies, attempt: writeToClipboard},
		},
	}
}

// Insert delivers text through the first applicable strategy. Empty text is
// rejected immediately without consulting any strategy.
func (r *Resolver) Insert(ctx context.Context, text string) Result {
	if text == "" {
		return Result{OK: false, Reason: ReasonNoTarget}
	}

	var lastFailed Method
	for _, s := range r.strategies {
		if !s.canHandle(r.env) {
			continue
		}
		if err := s.attempt(ctx, r.env, text); err != nil {
			lastFailed = s.method
			r.logger.Warn("insertion strategy failed", "method", string(s.method), "error", err.Error())
			continue
		}
		return Result{OK: true, Method: s.method}
	}

	switch lastFailed {
	case MethodClipboard:
		return Result{OK: false, Reason: ReasonClipboardFailed}
	case MethodBridge:
		return Result{OK: false, Reason: ReasonBridgeFailed}
	default:
		return Result{OK: false, Reason: ReasonNoTarget}
	}
}

func inputApplies(env Environment) bool {
	target := env.FocusedInput()
	return target != nil && !target.ReadOnly()
}

// insertIntoInput splices text at the caret, replacing any selection, moves
// the caret to just after the inserted text, and notifies exactly once.
func insertIntoInput(_ context.Context, env Environment, text string) error {
	target := env.FocusedInput()
	if target == nil {
		return errors.New("focused input disappeared")
	}

	value := target.Value()
	start, end := target.Selection()
	if start < 0 || end < start || end > len(value) {
		return fmt.Errorf("selection range [%d,%d) out of bounds for value of length %d", start, end, len(value))
	}

	spliced := value[:start] + text + value[end:]
	if err := target.SetValue(spliced, start+len(text)); err != nil {
		return fmt.Errorf("splice focused input: %w", err)
	}
	target.NotifyInput()
	return nil
}

func editableApplies(env Environment) bool {
	return env.FocusedEditable() != nil
}

func insertIntoEditable(_ context.Context, env Environment, text string) error {
	target := env.FocusedEditable()
	if target == nil {
		return errors.New("focused editable disappeared")
	}
	if err := target.Focus(); err != nil {
		return fmt.Errorf("focus editable: %w", err)
	}
	if err := target.InsertText(text); err != nil {
		return fmt.Errorf("insert into editable: %w", err)
	}
	return nil
}

func bridgeApplies(env Environment) bool {
	return env.Bridge() != nil
}

func typeThroughBridge(ctx context.Context, env Environment, text string) error {
	bridge := env.Bridge()
	if bridge == nil {
		return errors.New("typing bridge unavailable")
	}
	if err := bridge.TypeText(ctx, text); err != nil {
		return fmt.Errorf("typing bridge: %w", err)
	}
	return nil
}

func clipboardApplies(env Environment) bool {
	return env.Clipboard() != nil
}

func writeToClipboard(ctx context.Context, env Environment, text string) error {
	clipboard := env.Clipboard()
	if clipboard == nil {
		return errors.New("clipboard unavailable")
	}
	if err := clipboard.Write(ctx, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	return nil
}
