package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is shared by every lighthouse component. Until Init runs it writes
// JSON at info level to stdout, which is what tests see.
var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Config selects the level and encoding of the server log.
type Config struct {
	Level      string // debug, info, warn or error; empty means info
	JSONOutput bool
	Output     io.Writer
}

// ParseLevel accepts the levels offered by `lighthouse serve --log-level`.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
}

// Init replaces Logger. Console output is meant for operators running
// `lighthouse serve` by hand; deployments should set JSONOutput.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if !cfg.JSONOutput {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	Logger = zerolog.New(out).With().Timestamp().Str("service", "lighthouse").Logger()
	return nil
}

func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithContainer tags lines with the notebook container they concern, so a
// launch that died halfway can be traced by container_id or container_name.
func WithContainer(component, containerID, name string) zerolog.Logger {
	return Logger.With().
		Str("component", component).
		Str("container_id", containerID).
		Str("container_name", name).
		Logger()
}
