package xlog

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/bidtree/lib/infra"
)

var _ xLogCore = (*commonCore)(nil)

// commonCore keeps the parts of a zapcore.Core, so a component logger is able
// to rebuild the core with another encoder config on the same writer.
type commonCore struct {
	lvlEnabler zapcore.LevelEnabler
	lvlEnc     zapcore.LevelEncoder
	tsEnc      zapcore.TimeEncoder
	ws         zapcore.WriteSyncer
	enc        func(cfg zapcore.EncoderConfig) zapcore.Encoder
	core       zapcore.Core
	closer     io.Closer // Only the writer owner.
}

func (cc *commonCore) timeEncoder() zapcore.TimeEncoder   { return cc.tsEnc }
func (cc *commonCore) levelEncoder() zapcore.LevelEncoder { return cc.lvlEnc }
func (cc *commonCore) writeSyncer() zapcore.WriteSyncer   { return cc.ws }

func (cc *commonCore) outEncoder() func(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return cc.enc
}

func (cc *commonCore) Enabled(lvl zapcore.Level) bool {
	return cc.lvlEnabler.Enabled(lvl)
}

func (cc *commonCore) With(fields []zap.Field) zapcore.Core {
	return cc.core.With(fields)
}

func (cc *commonCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return cc.core.Check(ent, ce)
}

func (cc *commonCore) Write(ent zapcore.Entry, fields []zap.Field) error {
	return cc.core.Write(ent, fields)
}

func (cc *commonCore) Sync() error {
	return cc.core.Sync()
}

func (cc *commonCore) Close() error {
	if cc.closer == nil {
		return nil
	}
	err := cc.core.Sync()
	if cerr := cc.closer.Close(); cerr != nil {
		return cerr
	}
	return err
}

func newCommonCore(
	lvlEnabler zapcore.LevelEnabler,
	encoder logEncoderType,
	lvlEnc zapcore.LevelEncoder,
	tsEnc zapcore.TimeEncoder,
	ws zapcore.WriteSyncer,
	cfg zapcore.EncoderConfig,
) *commonCore {
	cc := &commonCore{
		lvlEnabler: lvlEnabler,
		lvlEnc:     lvlEnc,
		tsEnc:      tsEnc,
		ws:         ws,
		enc:        getEncoderByType(encoder),
	}
	cfg.EncodeLevel = cc.lvlEnc
	cfg.EncodeTime = cc.tsEnc
	cc.core = zapcore.NewCore(cc.enc(cfg), cc.ws, cc.lvlEnabler)
	return cc
}

// WrapCore rebuilds the core by the cfg. The new core follows the level of
// the origin core, unless the lvlEnabler is present.
func WrapCore(core xLogCore, cfg *zapcore.EncoderConfig, lvlEnabler ...zapcore.LevelEnabler) (xLogCore, error) {
	if core == nil {
		return nil, infra.NewErrorStack("[XLogger] logger core is nil")
	}
	if cfg == nil {
		return nil, infra.NewErrorStack("[XLogger] logger core config is empty")
	}

	var enabler zapcore.LevelEnabler = zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return core.Enabled(l)
	})
	if len(lvlEnabler) > 0 && lvlEnabler[0] != nil {
		enabler = lvlEnabler[0]
	}

	cc := &commonCore{
		ws:         core.writeSyncer(),
		enc:        core.outEncoder(),
		lvlEnabler: enabler,
		lvlEnc:     core.levelEncoder(),
		tsEnc:      core.timeEncoder(),
	}
	_cfg := *cfg
	_cfg.EncodeLevel = cc.lvlEnc
	_cfg.EncodeTime = cc.tsEnc
	cc.core = zapcore.NewCore(cc.enc(_cfg), cc.ws, cc.lvlEnabler)
	return cc, nil
}

var componentCoreEncoderCfg = &zapcore.EncoderConfig{
	MessageKey:    "msg",
	LevelKey:      "lvl",
	TimeKey:       "ts",
	CallerKey:     coreKeyIgnored,
	EncodeCaller:  zapcore.ShortCallerEncoder,
	FunctionKey:   coreKeyIgnored,
	NameKey:       "component",
	EncodeName:    zapcore.FullNameEncoder,
	StacktraceKey: coreKeyIgnored,
}

// newComponentLogger names the child logger and drops the caller, which is
// always the adapter itself.
func newComponentLogger(parent XLogger, name string, lvlEnabler ...zapcore.LevelEnabler) *xLogger {
	l := &xLogger{}
	if p, ok := parent.(*xLogger); ok && p != nil {
		l.dynamicLevelEnabler = p.dynamicLevelEnabler
		l.encoder = p.encoder
	} else {
		l.dynamicLevelEnabler = zap.NewAtomicLevel()
	}
	if parent == nil {
		l.logger.Store(zap.NewNop())
		return l
	}
	l.logger.Store(parent.
		zap().
		Named(name).
		WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			if core == nil {
				panic("[XLogger] core is nil")
			}
			cc, ok := core.(xLogCore)
			if !ok {
				panic("[XLogger] core is not xLogCore")
			}
			var err error
			if mc, ok := cc.(xLogMultiCore); ok {
				cc, err = WrapCores(mc, componentCoreEncoderCfg, lvlEnabler...)
			} else {
				cc, err = WrapCore(cc, componentCoreEncoderCfg, lvlEnabler...)
			}
			if err != nil {
				panic(err)
			}
			return cc
		})),
	)
	return l
}
