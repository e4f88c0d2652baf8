package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/OCAP2/trajectory-animator/internal/config"
	"github.com/OCAP2/trajectory-animator/internal/dispatcher"
	"github.com/OCAP2/trajectory-animator/internal/logging"
	intOtel "github.com/OCAP2/trajectory-animator/internal/otel"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailed    = 1
	exitUsage     = 2
	exitCancelled = 130
)

// command is one CLI subcommand.
type command struct {
	usage string
	flags func(fs *pflag.FlagSet)
	run   func(a *app, ctx context.Context, e dispatcher.Event) (any, error)
}

var commands = map[string]command{
	"render": {
		usage: "render --scene scene.yaml [--out file] [--speed S | --duration D]",
		flags: func(fs *pflag.FlagSet) {
			fs.String("scene", "", "scene file")
			fs.String("out", "", "output file, overrides the scene (.gif, .png, .mp4, .webm)")
			fs.Float64("speed", 0, "simulated seconds per frame")
			fs.Float64("duration", 0, "animation length in seconds")
		},
		run: (*app).render,
	},
	"preview": {
		usage: "preview --scene scene.yaml --out camera.html",
		flags: func(fs *pflag.FlagSet) {
			fs.String("scene", "", "scene file")
			fs.String("out", "camera.html", "HTML chart of the camera channels")
			fs.Float64("speed", 0, "simulated seconds per frame")
			fs.Float64("duration", 0, "animation length in seconds")
		},
		run: (*app).preview,
	},
	"inspect": {
		usage: "inspect [--scene scene.yaml]",
		flags: func(fs *pflag.FlagSet) {
			fs.String("scene", "", "scene file; without it the stored bodies are listed")
			fs.Float64("speed", 0, "simulated seconds per frame")
			fs.Float64("duration", 0, "animation length in seconds")
		},
		run: (*app).inspect,
	},
	"import": {
		usage: "import --file data.dat --name Earth [--format dat|ocap] [--entity id]",
		flags: func(fs *pflag.FlagSet) {
			fs.String("file", "", "source file")
			fs.String("name", "", "body name")
			fs.String("format", "", "dat or ocap, detected from the extension when empty")
			fs.Int("entity", 0, "entity id inside an OCAP recording")
			fs.String("epoch", "", "RFC3339 instant the dat time column counts from")
			fs.String("color", "", "default #rrggbb colour")
			fs.Bool("geographic", false, "dat columns are longitude, latitude, altitude")
		},
		run: (*app).importBody,
	},
}

// globalFlags are accepted by every command and bound into viper.
func globalFlags(fs *pflag.FlagSet) {
	fs.String("config", ".", "directory containing "+config.FileName)
	fs.String("log-level", "", "DEBUG, INFO, WARN or ERROR")
	fs.Int("fps", 0, "frames per second")
	fs.Int("dpi", 0, "render resolution")
	fs.Int("width", 0, "frame width in pixels")
	fs.Int("height", 0, "frame height in pixels")
}

var flagKeys = map[string]string{
	"log-level": "logLevel",
	"fps":       "render.fps",
	"dpi":       "render.dpi",
	"width":     "render.width",
	"height":    "render.height",
}

// app carries the state shared by the command handlers.
type app struct {
	stdout io.Writer
	stderr io.Writer
	fs     *pflag.FlagSet

	sessionStart time.Time
	logs         *logging.SlogManager
	logger       *slog.Logger
	logFile      *os.File
	logFilePath  string
	otel         *intOtel.Provider
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{
		stdout:       stdout,
		stderr:       stderr,
		sessionStart: time.Now(),
		logs:         logging.NewSlogManager(),
	}

	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.usage()
		return exitUsage
	}
	name := strings.ToLower(args[0])
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		a.usage()
		return exitUsage
	}

	a.fs = pflag.NewFlagSet(name, pflag.ContinueOnError)
	a.fs.SetOutput(stderr)
	globalFlags(a.fs)
	cmd.flags(a.fs)
	if err := a.fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitUsage
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	for flagName, key := range flagKeys {
		if err := viper.BindPFlag(key, a.fs.Lookup(flagName)); err != nil {
			fmt.Fprintln(stderr, err)
			return exitFailed
		}
	}

	// Initialize slog manager with initial config
	a.logs.Setup(stderr, "warn", nil)
	a.logger = a.logs.Logger()

	configDir, _ := a.fs.GetString("config")
	if err := config.Load(configDir); err != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", err)
	}

	if err := a.setupLogging(ctx); err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailed
	}
	defer a.close()

	d, err := newDispatcher(a)
	if err != nil {
		a.logger.Error("Failed to create dispatcher", "error", err)
		return exitFailed
	}

	_, err = d.Dispatch(ctx, dispatcher.Event{Command: name, Args: a.fs.Args(), Timestamp: time.Now()})
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)
		return exitUsage
	case errors.Is(err, dispatcher.ErrUnknownCommand):
		a.usage()
		return exitUsage
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "cancelled:", err)
		return exitCancelled
	default:
		fmt.Fprintln(stderr, "error:", err)
		return exitFailed
	}
}

// newDispatcher registers every command on a fresh dispatcher.
func newDispatcher(a *app) (*dispatcher.Dispatcher, error) {
	logger := a.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	for name, cmd := range commands {
		d.Register(name, func(ctx context.Context, e dispatcher.Event) (any, error) {
			return cmd.run(a, ctx, e)
		}, dispatcher.Logged(), dispatcher.Usage(cmd.usage))
	}
	return d, nil
}

func (a *app) usage() {
	fmt.Fprintf(a.stderr, "%s %s (%s)\n\nUsage:\n", AppName, CurrentVersion, BuildDate)
	d, err := newDispatcher(a)
	if err != nil {
		return
	}
	for _, c := range d.Commands() {
		fmt.Fprintf(a.stderr, "  %s %s\n", AppName, c[1])
	}

	fs := pflag.NewFlagSet("global", pflag.ContinueOnError)
	globalFlags(fs)
	fmt.Fprintf(a.stderr, "\nGlobal flags:\n%s", fs.FlagUsages())
}

// setupLogging opens the session log file and rebuilds the logger with it,
// the console, GELF and the OTel bridge.
func (a *app) setupLogging(ctx context.Context) error {
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs directory: %w", err)
	}

	a.logFilePath = logging.LogFilePath(logsDir, AppName, a.sessionStart)
	// keep the previous session's log if the name collides
	if _, err := os.Stat(a.logFilePath); err == nil {
		_ = os.Rename(a.logFilePath, a.logFilePath+".old")
	}
	f, err := os.OpenFile(a.logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to create/open log file: %w", err)
	}
	a.logFile = f

	level := viper.GetString("logLevel")

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		a.otel, err = intOtel.New(ctx, intOtel.FromConfig(otelCfg, f))
		if err != nil {
			a.logger.Error("Failed to initialize OTel provider", "error", err)
		}
	}

	var extra []slog.Handler
	if gl := config.GetGraylogConfig(); gl.Enabled {
		h, err := logging.NewGELFHandler(gl.Address, level)
		if err != nil {
			a.logger.Warn("Graylog disabled", "error", err)
		} else {
			extra = append(extra, h)
		}
	}

	a.logs.Setup(io.MultiWriter(f, a.stderr), level, a.otel.LoggerProvider(), extra...)
	a.logger = a.logs.Logger()
	a.logger.Debug("Logging to file", "path", a.logFilePath, "version", CurrentVersion)
	return nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.logs.Flush(ctx); err != nil {
		a.logger.Warn("Failed to flush logs", "error", err)
	}
	if err := a.otel.Shutdown(ctx); err != nil {
		a.logger.Warn("Failed to shut down OTel provider", "error", err)
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// zerologWriter is where the zerolog-based components write.
func (a *app) zerologWriter() io.Writer {
	if a.logFile == nil {
		return a.stderr
	}
	return a.logFile
}

func (a *app) flagString(name string) string {
	v, _ := a.fs.GetString(name)
	return strings.TrimSpace(v)
}

func (a *app) flagFloat(name string) float64 {
	v, _ := a.fs.GetFloat64(name)
	return v
}

// applyFlags puts explicitly given render flags over rc, which already
// carries the scene's overrides.
func (a *app) applyFlags(rc config.RenderConfig) config.RenderConfig {
	set := func(name string, dst *int) {
		if a.fs.Changed(name) {
			*dst, _ = a.fs.GetInt(name)
		}
	}
	set("fps", &rc.FPS)
	set("dpi", &rc.DPI)
	set("width", &rc.Width)
	set("height", &rc.Height)
	return rc
}

// absPath is used for log output only.
func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
