package utilities

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls log level, encoding and the optional rotating log file.
type Config struct {
	Level        string        `env:"LOG_LEVEL"`
	Dev          bool          `env:"LOG_DEV"`
	File         string        `env:"LOG_FILE"`
	MaxAge       time.Duration `env:"LOG_MAX_AGE" envDefault:"168h"`
	RotationTime time.Duration `env:"LOG_ROTATION_TIME" envDefault:"24h"`
}

func (c Config) withDefaults() Config {
	if c.Level == "" {
		if c.Dev {
			c.Level = "debug"
		} else {
			c.Level = "info"
		}
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 7 * 24 * time.Hour
	}
	if c.RotationTime <= 0 {
		c.RotationTime = 24 * time.Hour
	}
	return c
}

func levelFromString(l string) zapcore.Level {
	switch strings.ToLower(l) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init initializes and returns a *zap.Logger. When cfg.File is set, JSON
// entries are also written to a daily-rotated file next to stdout.
func Init(cfg Config) (*zap.Logger, error) {
	cfg = cfg.withDefaults()
	lvl := levelFromString(cfg.Level)
	if cfg.Dev && cfg.File == "" {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		rl, err := rotatingFile(cfg)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(os.Stdout, rl)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(out), lvl)
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	return zap.New(core, opts...), nil
}

// rotatingFile keeps a symlink at cfg.File pointing to the current segment.
func rotatingFile(cfg Config) (*rotatelogs.RotateLogs, error) {
	rl, err := rotatelogs.New(
		cfg.File+".%Y%m%d",
		rotatelogs.WithLinkName(cfg.File),
		rotatelogs.WithMaxAge(cfg.MaxAge),
		rotatelogs.WithRotationTime(cfg.RotationTime),
	)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return rl, nil
}
