// internal/logging/logging.go
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rikelmyso7/br-service-cli/internal/config"
)

// New builds the run logger: JSON lines into {LogDir}/br_service_{pid}.log and,
// unless quiet, a console core on stderr. stdout stays reserved for the JSON protocol.
// The returned cleanup flushes the logger and closes the log file.
func New(cfg *config.Config, quiet bool) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("nível de log inválido '%s': %w", cfg.LogLevel, err)
	}

	var cores []zapcore.Core
	var file *os.File

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("erro ao criar pasta de logs '%s': %w", cfg.LogDir, err)
		}
		path := filepath.Join(cfg.LogDir, fmt.Sprintf("br_service_%d.log", os.Getpid()))
		file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("erro ao abrir arquivo de log '%s': %w", path, err)
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), level))
	}

	if !quiet {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), func() {}, nil
	}
	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	cleanup := func() {
		// Sync errors on a terminal stderr are ignored.
		_ = logger.Sync()
		if file != nil {
			file.Close()
		}
	}
	return logger, cleanup, nil
}
