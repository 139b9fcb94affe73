package xlog

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/safeopen"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/bidtree/lib/infra"
)

type FileCoreConfig struct {
	FilePath string `json:"filePath" yaml:"filePath"`
	Filename string `json:"filename" yaml:"filename"`
	// Zero disables the buffer.
	FileBufferSize          int   `json:"fileBufferSize" yaml:"fileBufferSize"`
	FileBufferFlushInterval int64 `json:"fileBufferFlushInterval" yaml:"fileBufferFlushInterval"` // Milliseconds
}

const (
	_minBufferFlushMs = 200
	_maxBufferFlushMs = 3000
	_maxBufferSize    = 10 << 20
)

func (cfg *FileCoreConfig) bufferFlushInterval() time.Duration {
	ms := min(max(cfg.FileBufferFlushInterval, _minBufferFlushMs), _maxBufferFlushMs)
	return time.Duration(ms) * time.Millisecond
}

func newFileCore(cfg *FileCoreConfig) xLogCoreConstructor {
	return func(
		lvlEnabler zapcore.LevelEnabler,
		encoder logEncoderType,
		lvlEnc zapcore.LevelEncoder,
		tsEnc zapcore.TimeEncoder,
	) (xLogCore, error) {
		if cfg == nil {
			cfg = &FileCoreConfig{
				Filename: filepath.Base(os.Args[0]) + "_xlog.log",
				FilePath: os.TempDir(),
			}
		}
		if cfg.FileBufferSize > _maxBufferSize {
			return nil, infra.NewErrorStack("[XLogger] file buffer size too large")
		}

		// The log file never escapes its dir.
		f, err := safeopen.OpenFileBeneath(cfg.FilePath, cfg.Filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, infra.WrapErrorStackWithMessage(err, "[XLogger] failed to open log file "+cfg.Filename)
		}

		var ws zapcore.WriteSyncer = zapcore.Lock(f)
		if cfg.FileBufferSize > 0 {
			ws = &zapcore.BufferedWriteSyncer{
				WS:            ws,
				Size:          cfg.FileBufferSize,
				FlushInterval: cfg.bufferFlushInterval(),
			}
		}

		encCfg := defaultCoreEncoderCfg()
		encCfg.NameKey = coreKeyIgnored
		cc := newCommonCore(lvlEnabler, encoder, lvlEnc, tsEnc, ws, encCfg)
		cc.closer = fileCloser{ws: ws, f: f}
		return cc, nil
	}
}

type fileCloser struct {
	ws zapcore.WriteSyncer
	f  *os.File
}

func (c fileCloser) Close() error {
	if bws, ok := c.ws.(*zapcore.BufferedWriteSyncer); ok {
		if err := bws.Stop(); err != nil {
			_ = c.f.Close()
			return err
		}
	}
	return c.f.Close()
}
