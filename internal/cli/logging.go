package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// EnvLogLevel selects the log level: debug, info, warn or error.
const EnvLogLevel = "CLASSPREP_LOG_LEVEL"

// newLogger builds the stderr text logger. An empty level means info.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if level = strings.TrimSpace(level); level != "" {
		if err := logLevel.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvLogLevel, level, err)
		}
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler), nil
}
