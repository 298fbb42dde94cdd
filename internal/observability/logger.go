package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the service logger from LOG_LEVEL and LOG_FORMAT values.
// When transcript is non-nil every record is also written to it, giving a
// line-oriented log of each poll cycle.
func NewLogger(level, format string, transcript io.Writer) *slog.Logger {
	var w io.Writer = os.Stdout
	if transcript != nil {
		w = io.MultiWriter(os.Stdout, transcript)
	}

	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// OpenLogger is NewLogger with the transcript opened from transcriptPath. An
// empty path means no transcript. The returned close func releases the file
// and is never nil.
func OpenLogger(level, format, transcriptPath string) (*slog.Logger, func() error, error) {
	if transcriptPath == "" {
		return NewLogger(level, format, nil), func() error { return nil }, nil
	}
	f, err := openTranscript(transcriptPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open poll log %s: %w", transcriptPath, err)
	}
	return NewLogger(level, format, f), f.Close, nil
}

// openTranscript opens path for appending, creating it if needed.
func openTranscript(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
