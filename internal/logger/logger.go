package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultLevel = zapcore.InfoLevel

	// Одинаковые сообщения за секунду: первые sampleInitial пишутся,
	// дальше каждое sampleThereafter-е.
	sampleInitial    = 100
	sampleThereafter = 100
)

// Config описывает логгер процесса.
type Config struct {
	Level    string // debug, info, warn, error
	Encoding string // json или console
	// OutputPath - файл лога; пусто значит stdout.
	OutputPath string
	// Development: caller, цветные уровни в console и без сэмплирования.
	Development bool

	// Service и Version добавляются к каждой записи, если заданы.
	Service string
	Version string
}

func parseLevel(raw string) zap.AtomicLevel {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return zap.NewAtomicLevelAt(defaultLevel)
	}
	level, err := zap.ParseAtomicLevel(raw)
	if err != nil {
		// Логгера еще нет.
		fmt.Fprintf(os.Stderr, "Invalid log level %q, using %q: %v\n", raw, defaultLevel, err)
		return zap.NewAtomicLevelAt(defaultLevel)
	}
	return level
}

func encoderConfig(development, colored bool) zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.StringDurationEncoder
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	if development && colored {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return ec
}

// New builds the process logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	encoding := strings.ToLower(cfg.Encoding)
	if encoding != "console" {
		encoding = "json"
	}

	output := cfg.OutputPath
	if output == "" {
		output = "stdout"
	}

	fields := map[string]interface{}{}
	if cfg.Service != "" {
		fields["service"] = cfg.Service
	}
	if cfg.Version != "" {
		fields["version"] = cfg.Version
	}

	zc := zap.Config{
		Level:             parseLevel(cfg.Level),
		Development:       cfg.Development,
		DisableCaller:     !cfg.Development,
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig:     encoderConfig(cfg.Development, encoding == "console"),
		OutputPaths:       []string{output},
		ErrorOutputPaths:  []string{"stderr"},
		InitialFields:     fields,
	}
	if !cfg.Development {
		zc.Sampling = &zap.SamplingConfig{Initial: sampleInitial, Thereafter: sampleThereafter}
	}

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}
