// Package simlog configures the structured diagnostic logger shared by the
// device, network, and serialmonitor packages. It never writes to the
// terminal transcript the CLI shows the user (that goes through
// internal/report) — this is purely internal diagnostics: construction,
// cold startups, settle-loop failures (oscillation), serial write failures.
package simlog

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu  sync.Mutex
	log zerolog.Logger = zerolog.New(io.Discard)
)

// Configure points the shared logger at w, at the given level. Passing a
// nil w disables logging (the default).
func Configure(w io.Writer, level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		log = zerolog.New(io.Discard)
		return
	}
	log = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ConfigureDefault sets up a human-readable console logger on os.Stderr at
// info level, for the CLI's -v flag.
func ConfigureDefault() {
	Configure(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}, zerolog.InfoLevel)
}

// Logger returns the currently configured logger.
func Logger() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return &log
}
