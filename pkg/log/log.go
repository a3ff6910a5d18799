// Package log configures the zerolog logger every daemon starts from.
// Init runs once at process start and produces the root zerolog.Logger.
// coordsvc.NewServer and executor.New take a zerolog.Logger from their
// caller; repository.Open is the one constructor that reaches back into
// this package, building its logger with WithComponent. None of them
// call a package-level Info/Debug/Warn helper, so a caller always knows which
// logger (and which component/vm/experiment fields) a given piece of code
// is writing through, and tests can hand components a discard logger
// without touching process-global state. This package's job ends at
// building that first Logger and the handful of With* helpers that seed
// its fields; it does not offer shortcuts for logging without one.
package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the root logger Init produces. Reading it directly is only
// appropriate in main() wiring and package init(); everywhere else a
// component should hold the zerolog.Logger passed to its constructor.
var Logger zerolog.Logger

// Level is a string log level, matched case-insensitively against the
// zerolog levels so it can be taken verbatim from a CLI flag or env var.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls how Init builds the root logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init builds the root logger from cfg and assigns it to Logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch Level(strings.ToLower(string(cfg.Level))) {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// WithComponent returns a child logger tagged with the given component
// name, e.g. "coordsvc" or "repository".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithVM returns a child logger tagged with the VM name an executor is
// currently launching or polling a transfer for.
func WithVM(vmName string) zerolog.Logger {
	return Logger.With().Str("vm", vmName).Logger()
}

// WithExperiment returns a child logger tagged with the experiment/db
// name a schedule or graph operation is running against.
func WithExperiment(db string) zerolog.Logger {
	return Logger.With().Str("experiment", db).Logger()
}

func init() {
	// Sensible default so anything that runs before main() calls Init
	// (package init order, go test) still produces readable output
	// instead of a zero-value Logger that drops everything silently.
	Init(Config{Level: InfoLevel})
}
