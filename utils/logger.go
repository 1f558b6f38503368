package utils

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvLogDir overrides the directory log files are written to. Unset means
// the working directory; "-" disables file output entirely.
const EnvLogDir = "FLASHARB_LOG_DIR"

var (
	log  *zap.Logger
	once sync.Once
)

// logPaths resolves the output targets for the main and error streams.
func logPaths(dir string) (out, errOut []string) {
	out = []string{"stdout"}
	errOut = []string{"stderr"}
	if dir == "-" {
		return out, errOut
	}
	return append(out, filepath.Join(dir, "flasharb.log")),
		append(errOut, filepath.Join(dir, "flasharb-error.log"))
}

// InitLogger initializes the global logger. Debug mode switches to a
// human-readable console encoding and lowers the level.
func InitLogger(debug bool) *zap.Logger {
	once.Do(func() {
		config := zap.NewProductionConfig()
		if debug {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			config.Encoding = "console"
			config.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		}

		config.OutputPaths, config.ErrorOutputPaths = logPaths(os.Getenv(EnvLogDir))
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		logger, err := config.Build(
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
		if err != nil {
			panic(err)
		}

		log = logger
	})

	return log
}

// GetLogger returns the global logger, initializing it on first use.
func GetLogger() *zap.Logger {
	if log == nil {
		return InitLogger(false)
	}
	return log
}

// CleanupLogger flushes any buffered log entries.
func CleanupLogger() {
	if log != nil {
		_ = log.Sync()
	}
}
