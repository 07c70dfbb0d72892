package observability

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogger installs the process-wide slog handler: colored,
// human-readable output on stderr via tint, fanned out with a plain
// JSON handler writing to <dataDir>/gaze.log, rotated at 10 MiB with 5
// backups kept. level follows slog's standard names ("debug", "info",
// "warn", "error"); an unrecognized value falls back to info.
func SetupLogger(dataDir, level string) *slog.Logger {
	lvl := parseLevel(level)

	console := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: "15:04:05",
	})

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(dataDir, "gaze.log"),
		MaxSize:    10, // MiB
		MaxBackups: 5,
		Compress:   false,
	}
	file := slog.NewJSONHandler(fileWriter, &slog.HandlerOptions{Level: lvl})

	logger := slog.New(slogmulti.Fanout(console, file))
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
