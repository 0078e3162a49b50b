package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sassc/misc"
)

type LoggerConfig struct {
	Level       string `yaml:"level"`
	Destination string `yaml:"destination,omitempty"`
	Mode        string `yaml:"mode,omitempty"`
}

type LoggingConfig struct {
	FileLogger    LoggerConfig `yaml:"file"`
	ConsoleLogger LoggerConfig `yaml:"console"`
}

// Prepare returns our standard logger - configured zap logger for use by
// the program. Console output is split: info and below to stdout, errors
// to stderr; an optional file core captures everything at the configured
// level.
func (conf *LoggingConfig) Prepare() (*zap.Logger, error) {

	consoleEncoder := func(stream *os.File) zapcore.Encoder {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeCaller = nil
		if EnableColorOutput(stream) {
			ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
			ec.TimeKey = zapcore.OmitKey
		} else {
			ec.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		return zapcore.NewConsoleEncoder(ec)
	}

	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	lowPriority := func(floor zapcore.Level) zap.LevelEnablerFunc {
		return func(lvl zapcore.Level) bool {
			return floor <= lvl && lvl < zapcore.ErrorLevel
		}
	}

	var consoleCoreLP, consoleCoreHP zapcore.Core
	switch conf.ConsoleLogger.Level {
	case "normal":
		consoleCoreLP = zapcore.NewCore(consoleEncoder(os.Stdout), zapcore.Lock(os.Stdout), lowPriority(zapcore.InfoLevel))
		consoleCoreHP = zapcore.NewCore(consoleEncoder(os.Stderr), zapcore.Lock(os.Stderr), highPriority)
	case "debug":
		consoleCoreLP = zapcore.NewCore(consoleEncoder(os.Stdout), zapcore.Lock(os.Stdout), lowPriority(zapcore.DebugLevel))
		consoleCoreHP = zapcore.NewCore(consoleEncoder(os.Stderr), zapcore.Lock(os.Stderr), highPriority)
	default:
		consoleCoreLP = zapcore.NewNopCore()
		consoleCoreHP = zapcore.NewNopCore()
	}

	fileCore := zapcore.NewNopCore()
	if level := fileLogLevel(conf.FileLogger.Level); level != zapcore.InvalidLevel {
		flags := os.O_CREATE | os.O_WRONLY
		if conf.FileLogger.Mode == "append" {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(conf.FileLogger.Destination, flags, 0644)
		if err != nil {
			return nil, fmt.Errorf("unable to access file log destination (%s): %w", conf.FileLogger.Destination, err)
		}
		fileCore = zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(f),
			zap.NewAtomicLevelAt(level),
		)
	}

	core := zap.New(zapcore.NewTee(consoleCoreHP, consoleCoreLP, fileCore), zap.AddCaller())
	return core.Named(misc.GetAppName()), nil
}

func fileLogLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "normal":
		return zap.InfoLevel
	default:
		return zapcore.InvalidLevel
	}
}
