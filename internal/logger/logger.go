package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

// Init builds the global logger. Production emits JSON to stdout, every other
// environment gets the colored development encoder. LOG_LEVEL overrides the
// default level of either.
func Init(env string) {
	var cfg zap.Config

	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.MessageKey = "message"
		cfg.EncoderConfig.LevelKey = "level"
		cfg.EncoderConfig.CallerKey = "caller"
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := zapcore.ParseLevel(lvl); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(parsed)
		}
	}

	built, err := cfg.Build(zap.AddCaller())
	if err != nil {
		panic(err)
	}
	log = built.With(zap.String("service", "payflow"))
}

// L returns the global logger, initializing it from APP_ENV on first use.
func L() *zap.Logger {
	if log == nil {
		Init(os.Getenv("APP_ENV"))
	}
	return log
}

// Replace swaps the global logger and returns a func restoring the previous
// one. Tests use it with zaptest/observer.
func Replace(l *zap.Logger) func() {
	prev := log
	log = l
	return func() { log = prev }
}

func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
