package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/luisa-bot-go/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	jsonTimestamp = "2006-01-02T15:04:05.000Z07:00"
	textTimestamp = "2006-01-02 15:04:05"
)

// NewLogger builds the bot logger from the logging section of the config.
// Output is one of stdout, stderr, file or both (stdout plus the rotated file).
func NewLogger(cfg *config.LoggingConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	formatter, err := formatterFor(cfg.Format)
	if err != nil {
		return nil, err
	}

	out, err := writerFor(cfg)
	if err != nil {
		return nil, err
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(formatter)
	l.SetOutput(out)
	return l, nil
}

func formatterFor(format string) (logrus.Formatter, error) {
	switch format {
	case "json":
		return &logrus.JSONFormatter{
			TimestampFormat: jsonTimestamp,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		}, nil
	case "text", "":
		return &logrus.TextFormatter{
			TimestampFormat: textTimestamp,
			FullTimestamp:   true,
		}, nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func writerFor(cfg *config.LoggingConfig) (io.Writer, error) {
	switch cfg.Output {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "file":
		return rotatingFile(cfg.File)
	case "both":
		file, err := rotatingFile(cfg.File)
		if err != nil {
			return nil, err
		}
		return io.MultiWriter(os.Stdout, file), nil
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}
}

// rotatingFile sizes are in megabytes and ages in days.
func rotatingFile(cfg config.FileConfig) (io.Writer, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("log file path is required for file output")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}, nil
}

// WithMessage adds the routing fields of an inbound message to logger
func WithMessage(logger *logrus.Logger, channelID, userID string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"channel_id": channelID,
		"user_id":    userID,
	})
}

// Discard returns a logger that drops every entry.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
