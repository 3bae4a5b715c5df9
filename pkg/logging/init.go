package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

const (
	JSON = "json"
	Text = "text"
	Tint = "tint"
)

// Initialize installs the process-wide slog default handler.
func Initialize(loggingType string, logLevelName string) error {
	handler, err := newHandler(os.Stdout, loggingType, logLevelName)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(handler))
	slog.Debug("logging initialized", "type", loggingType, "level", logLevelName)
	return nil
}

func newHandler(w io.Writer, loggingType string, logLevelName string) (slog.Handler, error) {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(logLevelName)); err != nil {
		return nil, fmt.Errorf("could not parse log level: %v", err)
	}

	opts := slog.HandlerOptions{Level: logLevel}

	switch loggingType {
	case JSON:
		return slog.NewJSONHandler(w, &opts), nil
	case Text:
		return slog.NewTextHandler(w, &opts), nil
	case Tint:
		return tint.NewHandler(w, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
		}), nil
	default:
		return nil, fmt.Errorf("unknown logging type: %s", loggingType)
	}
}
