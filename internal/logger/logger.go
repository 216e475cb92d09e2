// Package logger собирает zap-логгер агента: консоль плюс опциональный
// JSON-файл с ротацией через lumberjack.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Zap struct {
	*zap.Logger
}

// New создает логгер. env=dev включает читаемый консольный формат,
// иначе пишется JSON. Неизвестный уровень трактуется как info.
func New(env, level, file string) (*Zap, error) {
	return newWithWriter(env, level, file, zapcore.Lock(os.Stderr))
}

func newWithWriter(env, level, file string, console zapcore.WriteSyncer) (*Zap, error) {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.SetLevel(zap.InfoLevel)
	}

	var encoder zapcore.Encoder
	if env == "dev" {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		encoder = zapcore.NewConsoleEncoder(cfg)
	} else {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder, console, lvl)}

	if file != "" {
		// Файл всегда в JSON, чтобы логи эпизодов можно было разбирать.
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), fileWriter, lvl))
	}

	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	return &Zap{Logger: log}, nil
}

// Sync сбрасывает буферы. Ошибка sync для stderr/stdout игнорируется.
func (z *Zap) Sync() {
	_ = z.Logger.Sync()
}
