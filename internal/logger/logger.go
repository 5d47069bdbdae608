// Package logger builds the application's *slog.Logger.
//
// The handler depends on the environment:
//
//	dev      text,  DEBUG
//	staging  JSON,  DEBUG
//	prod     JSON,  INFO
//
// log.level overrides the level. When log.file is set, records are also
// written to a size-rotated file.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/aanand-mishra/students-api/internal/config"
)

// New returns the logger for env and a Closer for the log file, if any.
// The Closer is never nil.
func New(env string, cfg config.Log) (*slog.Logger, io.Closer) {
	return build(env, cfg, os.Stdout)
}

func build(env string, cfg config.Log, stdout io.Writer) (*slog.Logger, io.Closer) {
	out := stdout
	var closer io.Closer
	var fileErr error

	if cfg.File != "" {
		if err := ensureLogDir(cfg.File); err != nil {
			fileErr = err
		} else {
			file := &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   cfg.Compress,
			}
			out = io.MultiWriter(stdout, file)
			closer = file
		}
	}

	opts := &slog.HandlerOptions{Level: level(env, cfg.Level)}

	var handler slog.Handler
	switch env {
	case config.EnvProd, config.EnvStaging:
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}

	log := slog.New(handler)
	if fileErr != nil {
		log.Error("cannot prepare log directory, logging to stdout only",
			slog.String("path", cfg.File),
			slog.String("error", fileErr.Error()))
	}

	if closer == nil {
		closer = nopCloser{}
	}
	return log, closer
}

func level(env, override string) slog.Level {
	if override != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(override)); err == nil {
			return lvl
		}
	}
	if env == config.EnvProd {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
