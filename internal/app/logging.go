package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/config"
	logruslog "github.com/unkn0wn-root/querycache/log/logrus"
	slogslog "github.com/unkn0wn-root/querycache/log/slog"
	zaplog "github.com/unkn0wn-root/querycache/log/zap"
)

// newLogger returns the adapter for the configured backend and a flush func.
func newLogger(lc config.LogConfig, w io.Writer) (querycache.Logger, func() error, error) {
	nop := func() error { return nil }
	switch lc.Backend {
	case "logrus":
		l := logrus.New()
		l.SetOutput(w)
		lvl, err := logrus.ParseLevel(orInfo(lc.Level))
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		l.SetLevel(lvl)
		if lc.Format == "json" {
			l.SetFormatter(&logrus.JSONFormatter{})
		} else {
			l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		}
		return logruslog.New(l, "querycache"), nop, nil
	case "slog":
		return slogslog.Logger{L: slog.New(slogHandler(lc, w))}, nop, nil
	case "zap", "":
		lvl, err := zapcore.ParseLevel(orInfo(lc.Level))
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		var enc zapcore.Encoder
		if lc.Format == "json" {
			enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		} else {
			enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		}
		l := zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl)).Named("querycache")
		// Sync on a terminal fd returns EINVAL; nothing is buffered there anyway.
		return zaplog.New(l), func() error { _ = l.Sync(); return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown log backend %q", lc.Backend)
}

func slogHandler(lc config.LogConfig, w io.Writer) slog.Handler {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(orInfo(lc.Level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if lc.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func orInfo(level string) string {
	if level == "" {
		return "info"
	}
	return level
}
