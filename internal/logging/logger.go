// Package logging configures the application-wide structured logger.
package logging

import (
	"log/slog"
	"os"
)

// Init initializes the global logger with the specified level and format.
// level: "debug", "info", "warn", "error" (defaults to "info")
// format: "json" or "text" (defaults to "text")
func Init(level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// WithAccount returns a logger with the account_id field.
func WithAccount(accountID string) *slog.Logger {
	return slog.Default().With("account_id", accountID)
}

// WithError returns a logger with the error field.
func WithError(err error) *slog.Logger {
	return slog.Default().With("error", err)
}
