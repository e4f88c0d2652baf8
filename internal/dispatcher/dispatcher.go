package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/trajectory-animator/internal/dispatcher"

// ErrUnknownCommand is returned by Dispatch for unregistered commands.
var ErrUnknownCommand = errors.New("unknown command")

// Event represents one CLI invocation.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(context.Context, Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	usage  string
	logged bool
}

// Logged adds start/finish logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Usage sets the one-line help shown for the command.
func Usage(text string) Option {
	return func(c *config) {
		c.usage = text
	}
}

type entry struct {
	handler HandlerFunc
	usage   string
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]entry
	logger   Logger

	// OTEL metrics
	processed metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]entry),
		logger:   logger,
	}

	m := otel.Meter(instrumentationName)

	var err error

	d.processed, err = m.Int64Counter(
		"dispatcher.commands.processed",
		metric.WithDescription("Total commands processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.commands.failed",
		metric.WithDescription("Total commands that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	d.duration, err = m.Float64Histogram(
		"dispatcher.command.duration",
		metric.WithDescription("Wall time of a command"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	d.handlers[command] = entry{handler: d.withMetrics(command, handler), usage: cfg.usage}
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) (any, error) {
	en, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return en.handler(ctx, e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Commands lists registered commands with their usage text, sorted by name.
func (d *Dispatcher) Commands() [][2]string {
	out := make([][2]string, 0, len(d.handlers))
	for name, en := range d.handlers {
		out = append(out, [2]string{name, en.usage})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func (d *Dispatcher) withMetrics(command string, h HandlerFunc) HandlerFunc {
	cmdAttr := metric.WithAttributes(attribute.String("command", command))
	return func(ctx context.Context, e Event) (any, error) {
		start := time.Now()
		result, err := h(ctx, e)
		// a cancelled render still gets counted
		ctx = context.WithoutCancel(ctx)
		d.duration.Record(ctx, time.Since(start).Seconds(), cmdAttr)
		d.processed.Add(ctx, 1, cmdAttr)
		if err != nil {
			d.failed.Add(ctx, 1, cmdAttr)
		}
		return result, err
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling command", "command", command, "args", len(e.Args))

		result, err := h(ctx, e)

		if err != nil {
			d.logger.Error("command failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Info("command complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
