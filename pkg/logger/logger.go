package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger — printf-обёртка над zap с полем service.
// Создаётся один раз в fx-графе и прокидывается в конструкторы.
type Logger struct {
	z       *zap.Logger
	service string
}

func New(service, level string) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("logger.New: %w", err)
	}
	return &Logger{z: z.With(zap.String("service", service)), service: service}, nil
}

// Nop — логгер для тестов.
func Nop() *Logger {
	return &Logger{z: zap.NewNop(), service: "nop"}
}

func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...), service: l.service}
}

func (l *Logger) Service() string { return l.service }

func (l *Logger) Debug(format string, args ...interface{}) {
	l.z.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.z.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.z.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.z.Error(fmt.Sprintf(format, args...))
}

func (l *Logger) Fatal(format string, args ...interface{}) {
	l.z.Fatal(fmt.Sprintf(format, args...))
}

func (l *Logger) Sync() {
	_ = l.z.Sync()
}
