package logger

import (
	"os"
	"path/filepath"

	config "github.com/inference-gateway/adgate/config"
	zap "go.uber.org/zap"
	zapcore "go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	sugar  *zap.SugaredLogger
)

// Init initializes the process logger. Verbose or logging.debug lowers the
// level to debug; logging.dir sends output to adgate.log instead of stderr.
func Init(verbose bool, cfg *config.Config) {
	level := zapcore.InfoLevel
	if verbose || (cfg != nil && cfg.Logging.Debug) {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sink := zapcore.Lock(os.Stderr)
	if cfg != nil && cfg.Logging.Dir != "" {
		if err := os.MkdirAll(cfg.Logging.Dir, 0755); err == nil {
			f, err := os.OpenFile(filepath.Join(cfg.Logging.Dir, "adgate.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err == nil {
				sink = zapcore.Lock(f)
			}
		}
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, level)
	logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	sugar = logger.Sugar()
	zap.ReplaceGlobals(logger.WithOptions(zap.AddCallerSkip(-1)))
}

// Close flushes buffered log entries
func Close() {
	if logger != nil {
		_ = logger.Sync()
	}
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	if sugar != nil {
		sugar.Debugw(msg, args...)
	}
}

// Info logs an info message
func Info(msg string, args ...any) {
	if sugar != nil {
		sugar.Infow(msg, args...)
	}
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	if sugar != nil {
		sugar.Warnw(msg, args...)
	}
}

// Error logs an error message
func Error(msg string, args ...any) {
	if sugar != nil {
		sugar.Errorw(msg, args...)
	}
}
