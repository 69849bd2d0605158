package obs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type correlationContextKey struct{}

// Correlation carries the identifiers attached to every log line of a run
// step or a fixture request.
type Correlation struct {
	RunID     string
	Scenario  string
	Step      string
	StepIndex int // 1-based; zero means unset
	Tab       int // 1-based; zero means unset
	RequestID string
	TraceID   string
}

var (
	loggerMu sync.RWMutex
	logger   *slog.Logger
	level    = new(slog.LevelVar)
)

// Init configures the global structured logger.
func Init() {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger != nil {
		return
	}
	logger = newLogger(os.Stderr)
	slog.SetDefault(logger)
}

// SetLevel changes the minimum level of the global logger. The default is debug.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels,
// falling back to info for anything else.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetOutputForTests overrides the global logger output for tests.
func SetOutputForTests(w io.Writer) func() {
	loggerMu.Lock()
	prev := logger
	logger = newLogger(w)
	slog.SetDefault(logger)
	loggerMu.Unlock()

	return func() {
		loggerMu.Lock()
		defer loggerMu.Unlock()
		if prev != nil {
			logger = prev
		} else {
			logger = newLogger(os.Stderr)
		}
		slog.SetDefault(logger)
	}
}

func newLogger(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey {
				t, ok := attr.Value.Any().(time.Time)
				if ok {
					return slog.String(slog.TimeKey, t.UTC().Format(time.RFC3339Nano))
				}
			}
			return attr
		},
	})
	return slog.New(handler)
}

func init() {
	level.Set(slog.LevelDebug)
}

func globalLogger() *slog.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}
	Init()
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Pkg returns a logger tagged with package name.
func Pkg(pkg string) *slog.Logger {
	return globalLogger().With("pkg", pkg)
}

// From returns a logger with correlation fields from context.
func From(ctx context.Context) *slog.Logger {
	l := globalLogger()
	attrs := correlationAttrs(CorrelationFromContext(ctx))
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}

// WithRun stores the run identity in context.
func WithRun(ctx context.Context, runID, scenario string) context.Context {
	return WithCorrelation(ctx, Correlation{RunID: runID, Scenario: scenario})
}

// WithStep stores the current step and tab in context.
func WithStep(ctx context.Context, index int, name string, tab int) context.Context {
	return WithCorrelation(ctx, Correlation{StepIndex: index, Step: name, Tab: tab})
}

// RunIDFromContext returns run_id from context, or "unknown".
func RunIDFromContext(ctx context.Context) string {
	corr := CorrelationFromContext(ctx)
	if corr.RunID == "" {
		return "unknown"
	}
	return corr.RunID
}

// WithCorrelation merges non-empty correlation fields into context.
func WithCorrelation(ctx context.Context, corr Correlation) context.Context {
	existing := CorrelationFromContext(ctx)
	if corr.RunID != "" {
		existing.RunID = corr.RunID
	}
	if corr.Scenario != "" {
		existing.Scenario = corr.Scenario
	}
	if corr.Step != "" {
		existing.Step = corr.Step
	}
	if corr.StepIndex != 0 {
		existing.StepIndex = corr.StepIndex
	}
	if corr.Tab != 0 {
		existing.Tab = corr.Tab
	}
	if corr.RequestID != "" {
		existing.RequestID = corr.RequestID
	}
	if corr.TraceID != "" {
		existing.TraceID = corr.TraceID
	}
	return context.WithValue(ctx, correlationContextKey{}, existing)
}

// CorrelationFromContext returns correlation fields from context.
func CorrelationFromContext(ctx context.Context) Correlation {
	if ctx == nil {
		return Correlation{}
	}
	corr, ok := ctx.Value(correlationContextKey{}).(Correlation)
	if !ok {
		return Correlation{}
	}
	return corr
}

func correlationAttrs(corr Correlation) []any {
	attrs := make([]any, 0, 14)
	if corr.RunID != "" {
		attrs = append(attrs, "run_id", corr.RunID)
	}
	if corr.Scenario != "" {
		attrs = append(attrs, "scenario", corr.Scenario)
	}
	if corr.Step != "" {
		attrs = append(attrs, "step", corr.Step)
	}
	if corr.StepIndex != 0 {
		attrs = append(attrs, "step_index", corr.StepIndex)
	}
	if corr.Tab != 0 {
		attrs = append(attrs, "tab", strconv.Itoa(corr.Tab))
	}
	if corr.RequestID != "" {
		attrs = append(attrs, "request_id", corr.RequestID)
	}
	if corr.TraceID != "" {
		attrs = append(attrs, "trace_id", corr.TraceID)
	}
	return attrs
}

func newRequestID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "req-fallback"
	}
	return "req-" + hex.EncodeToString(buf)
}
