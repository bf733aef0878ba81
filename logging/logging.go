package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Formats accepted by New.
const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
	FormatText   = "text"
)

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}

// New returns a logger writing to w in the given format at the given level.
func New(w io.Writer, format, level string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(format) {
	case FormatPretty, "":
		h = NewPrettyJSONHandler(w, &PrettyOptions{HandlerOptions: opts, Indent: "  "})
	case FormatJSON:
		h = slog.NewJSONHandler(w, &opts)
	case FormatText:
		h = slog.NewTextHandler(w, &opts)
	default:
		return nil, fmt.Errorf("log format %q: want %s, %s or %s", format, FormatPretty, FormatJSON, FormatText)
	}
	return slog.New(h), nil
}
