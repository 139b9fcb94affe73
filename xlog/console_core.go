package xlog

import (
	"go.uber.org/zap/zapcore"
)

func defaultCoreEncoderCfg() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:    "msg",
		LevelKey:      "lvl",
		TimeKey:       "ts",
		CallerKey:     "callAt",
		EncodeCaller:  zapcore.ShortCallerEncoder,
		FunctionKey:   "fn",
		NameKey:       "component",
		EncodeName:    zapcore.FullNameEncoder,
		StacktraceKey: coreKeyIgnored,
	}
}

func newConsoleCore(
	lvlEnabler zapcore.LevelEnabler,
	encoder logEncoderType,
	lvlEnc zapcore.LevelEncoder,
	tsEnc zapcore.TimeEncoder,
) (xLogCore, error) {
	return newCommonCore(lvlEnabler, encoder, lvlEnc, tsEnc, stdOutWriter, defaultCoreEncoderCfg()), nil
}

// newWriterCore outputs to the caller's writer, like a bytes.Buffer in tests
// or the menu's output.
func newWriterCore(ws zapcore.WriteSyncer) xLogCoreConstructor {
	return func(
		lvlEnabler zapcore.LevelEnabler,
		encoder logEncoderType,
		lvlEnc zapcore.LevelEncoder,
		tsEnc zapcore.TimeEncoder,
	) (xLogCore, error) {
		return newCommonCore(lvlEnabler, encoder, lvlEnc, tsEnc, zapcore.Lock(ws), defaultCoreEncoderCfg()), nil
	}
}
