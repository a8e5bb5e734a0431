package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/sbpk516/signalhub-dictation/internal/capture"
	"github.com/sbpk516/signalhub-dictation/internal/cli"
	"github.com/sbpk516/signalhub-dictation/internal/config"
	"github.com/sbpk516/signalhub-dictation/internal/doctor"
	"github.com/sbpk516/signalhub-dictation/internal/event"
	"github.com/sbpk516/signalhub-dictation/internal/indicator"
	"github.com/sbpk516/signalhub-dictation/internal/insert"
	"github.com/sbpk516/signalhub-dictation/internal/ipc"
	"github.com/sbpk516/signalhub-dictation/internal/keyhook"
	"github.com/sbpk516/signalhub-dictation/internal/lifecycle"
	"github.com/sbpk516/signalhub-dictation/internal/logging"
	"github.com/sbpk516/signalhub-dictation/internal/shortcut"
	"github.com/sbpk516/signalhub-dictation/internal/transcript"
	"github.com/sbpk516/signalhub-dictation/internal/upload"
	"github.com/sbpk516/signalhub-dictation/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("dictate"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("dictate"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.Request{Command: "cancel"})
	case cli.CommandGrant:
		return r.forwardOrFail(ctx, ipc.Request{Command: "grant", RequestID: parsed.RequestID})
	case cli.CommandDeny:
		return r.forwardOrFail(ctx, ipc.Request{Command: "deny", RequestID: parsed.RequestID})
	case cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := capture.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: "status"})
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active dictation session\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) commandRun(ctx context.Context, loaded config.Loaded, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: dictation session already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	cfg := loaded.Config
	bus := event.NewBus(16)
	defer bus.Close()

	probe := func() (accessibilityOK, micOK bool) {
		accessibilityOK = os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != ""
		_, micErr := capture.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
		return accessibilityOK, micErr == nil
	}

	manager := lifecycle.NewManager(logger, bus, shortcut.Validate(cfg.Dictation.Shortcut).Chord, keyhook.NewSystemHook, probe)
	controller := buildController(cfg, logger)
	controller.OnWatchdog(manager.Cancel)
	controller.OnDisable(manager.StopListening)

	events, cancelSub := bus.Subscribe()
	defer cancelSub()
	controllerDone := make(chan struct{})
	go func() {
		defer close(controllerDone)
		controller.Run(ctx, events)
	}()

	gateway := &ipcGateway{
		manager: manager,
		bus:     bus,
		reload: func() error {
			next, err := config.Load(loaded.Path)
			if err != nil {
				return err
			}
			applyReload(manager, next, logger)
			return nil
		},
	}
	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, gateway)
	}()

	watcher := config.NewWatcher(logger, loaded.Path, func(next config.Loaded) {
		applyReload(manager, next, logger)
	})
	go func() { _ = watcher.Run(ctx) }()

	if cfg.Dictation.Enabled {
		if err := manager.StartListening(); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		logger.Info("dictation service started",
			"shortcut", cfg.Dictation.Shortcut,
			"endpoint", cfg.Endpoint.URL,
			"socket", socketPath,
		)
	} else {
		logger.Info("dictation disabled in config; waiting for reload", "config", loaded.Path)
	}

	<-ctx.Done()

	manager.StopListening()
	controller.Shutdown()
	serverCancel()
	<-controllerDone
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logger.Info("dictation service stopped")
	return 0
}

func buildController(cfg config.Config, logger *slog.Logger) *capture.Controller {
	source := capture.NewPulseSource(cfg.Audio.Input, cfg.Audio.Fallback, func(msg string) {
		logger.Warn("audio device fallback", "detail", msg)
	})

	uploader := upload.NewClient(upload.Config{
		Endpoint:    strings.TrimRight(cfg.Endpoint.URL, "/") + cfg.Endpoint.TranscribePath,
		MaxAttempts: cfg.Upload.MaxAttempts,
		BaseBackoff: time.Duration(cfg.Upload.BackoffMS) * time.Millisecond,
		Timeout:     time.Duration(cfg.Upload.TimeoutMS) * time.Millisecond,
	}, logger)

	// Unset commands must stay untyped nils; a typed nil would slip past the
	// resolver's capability checks.
	var bridge insert.Bridge
	if len(cfg.Bridge.Argv) > 0 {
		bridge = insert.NewCommandBridge(cfg.Bridge.Argv, true)
	}
	var clipboard insert.Clipboard
	if len(cfg.Clipboard.Argv) > 0 {
		clipboard = insert.NewCommandClipboard(cfg.Clipboard.Argv)
	}
	inserter := insert.NewResolver(logger, insert.NewHostEnvironment(bridge, clipboard))

	overlay := indicator.NewOverlay(cfg.Indicator, logger)

	return capture.NewController(logger, source, uploader, inserter, overlay, capture.Config{
		WatchdogTimeout: time.Duration(cfg.Capture.WatchdogSeconds) * time.Second,
		MimePreference:  cfg.Capture.MimePreference,
		Transcript: transcript.Options{
			TrailingSpace:       cfg.Transcript.TrailingSpace,
			CapitalizeSentences: cfg.Transcript.CapitalizeSentences,
		},
	})
}

func applyReload(manager *lifecycle.Manager, next config.Loaded, logger *slog.Logger) {
	result := shortcut.Validate(next.Config.Dictation.Shortcut)
	if result.IsValid {
		manager.SetChord(result.Chord)
	} else {
		logger.Warn("reloaded shortcut invalid; keeping previous chord", "shortcut", next.Config.Dictation.Shortcut)
	}

	if next.Config.Dictation.Enabled {
		if err := manager.StartListening(); err != nil {
			logger.Error("start listening after reload failed", "error", err.Error())
		}
	} else {
		manager.StopListening()
	}
}

// ipcGateway adapts lifecycle commands to the IPC surface and exposes the
// event bus to subscribe clients.
type ipcGateway struct {
	manager *lifecycle.Manager
	bus     *event.Bus
	reload  func() error
}

func (g *ipcGateway) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return ipc.Response{OK: true, State: string(g.manager.State())}
	case "cancel":
		g.manager.Cancel("cancelled via ipc")
		return ipc.Response{OK: true, Message: "cancelled"}
	case "grant":
		g.manager.GrantPermission(req.RequestID)
		return ipc.Response{OK: true, Message: fmt.Sprintf("granted request %d", req.RequestID)}
	case "deny":
		g.manager.DenyPermission(req.RequestID)
		return ipc.Response{OK: true, Message: fmt.Sprintf("denied request %d", req.RequestID)}
	case "reload":
		if g.reload == nil {
			return ipc.Response{OK: false, Error: "reload is not available"}
		}
		if err := g.reload(); err != nil {
			return ipc.Response{OK: false, Error: err.Error()}
		}
		return ipc.Response{OK: true, Message: "config reloaded"}
	case "subscribe":
		return ipc.Response{OK: true, State: string(g.manager.State())}
	default:
		return ipc.Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Command)}
	}
}

func (g *ipcGateway) StreamEvents() (<-chan event.Envelope, func()) {
	events, cancel := g.bus.Subscribe()
	out := make(chan event.Envelope, 16)
	go func() {
		defer close(out)
		for ev := range events {
			env, err := event.Encode(ev)
			if err != nil {
				continue
			}
			select {
			case out <- env:
			default:
			}
		}
	}()
	return out, cancel
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
