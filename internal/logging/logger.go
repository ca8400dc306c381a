package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"espacio/internal/config"

	"github.com/rs/zerolog"
)

// New builds the process-wide zerolog logger. Zeroed config fields mean
// JSON to stdout at info level. The returned closer is non-nil only for
// file output.
func New(cfg config.LoggingConfig, app config.AppConfig) (*zerolog.Logger, io.Closer, error) {
	sink, closer, err := openSink(cfg)
	if err != nil {
		return nil, nil, err
	}

	if normalize(cfg.Format) == "console" {
		sink = zerolog.ConsoleWriter{Out: sink, TimeFormat: time.RFC3339}
	}

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(normalize(cfg.Level)); err == nil {
		level = parsed
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	ctx := zerolog.New(sink).Level(level).With().Timestamp().Str("app", app.Name)
	if app.Environment != "" {
		ctx = ctx.Str("env", app.Environment)
	}
	if app.Version != "" {
		ctx = ctx.Str("version", app.Version)
	}
	logger := ctx.Logger()

	return &logger, closer, nil
}

func openSink(cfg config.LoggingConfig) (io.Writer, io.Closer, error) {
	switch normalize(cfg.Output) {
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("logging.output=file requires logging.file_path")
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return file, file, nil
	default:
		return os.Stdout, nil, nil
	}
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
