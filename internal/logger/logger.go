// Package logger wraps zerolog behind a small, stable API.
//
// Background workers log heavily (job transitions, per-target outcomes),
// so everything funnels through structured fields rather than formatted
// strings wherever a caller can supply them.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the schemadoc logging handle.
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level  string    `yaml:"level"`  // debug, info, warn, error
	Format string    `yaml:"format"` // json, console
	Output io.Writer `yaml:"-"`
}

// DefaultConfig returns production defaults: info-level JSON on stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "json",
		Output: os.Stdout,
	}
}

// New creates a logger from cfg. A nil cfg uses DefaultConfig.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	var zlog zerolog.Logger
	if cfg.Format == "console" {
		// Human-readable output for development.
		cw := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		zlog = zerolog.New(cw).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
	} else {
		zlog = zerolog.New(out).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
	}

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything. Used by tests and as
// the fallback when a component is constructed without a logger.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// WithContext stores the logger in ctx for retrieval via FromContext.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return l.zlog.WithContext(ctx)
}

// FromContext retrieves the logger from ctx, or a default logger if absent.
func FromContext(ctx context.Context) *Logger {
	zlog := zerolog.Ctx(ctx)
	if zlog.GetLevel() == zerolog.Disabled {
		return New(nil)
	}
	return &Logger{zlog: *zlog}
}

// With starts a child logger with additional bound fields.
func (l *Logger) With() *Context {
	return &Context{ctx: l.zlog.With()}
}

// Context wraps zerolog.Context for field chaining.
type Context struct {
	ctx zerolog.Context
}

func (c *Context) Str(key, val string) *Context {
	c.ctx = c.ctx.Str(key, val)
	return c
}

func (c *Context) Int(key string, val int) *Context {
	c.ctx = c.ctx.Int(key, val)
	return c
}

func (c *Context) Err(err error) *Context {
	c.ctx = c.ctx.Err(err)
	return c
}

func (c *Context) Logger() *Logger {
	return &Logger{zlog: c.ctx.Logger()}
}

// --- Leveled events ---
//
// Event methods return the underlying zerolog.Event so call sites can
// chain fields: log.Info().Str("table", t.Name).Msg("described").

func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zlog.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zlog.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.zlog.Fatal() }

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
