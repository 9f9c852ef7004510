package logging

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

var secretMarkers = []string{
	"token",
	"secret",
	"password",
	"key",
	"auth",
	"bearer",
	"credential",
	"email",
}

// New builds a production JSON logger at the given level. With redact set,
// secret-shaped fields are masked before they reach the encoder.
func New(level string, redact bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	var opts []zap.Option
	if redact {
		opts = append(opts, zap.WrapCore(NewRedactingCore))
	}

	return cfg.Build(opts...)
}

// IsSecret reports whether a field or variable name looks like it carries a
// credential or personal data.
func IsSecret(name string) bool {
	name = strings.ToLower(name)
	for _, m := range secretMarkers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

type redactingCore struct {
	zapcore.Core
}

// NewRedactingCore wraps core so that fields named like secrets are written
// as "[REDACTED]".
func NewRedactingCore(core zapcore.Core) zapcore.Core {
	return &redactingCore{Core: core}
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(redactFields(fields))}
}

// Check asks the wrapped core first so samplers and level filters below this
// core still decide whether the entry is written.
func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Core.Check(ent, nil) != nil {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, redactFields(fields))
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		if IsSecret(f.Key) && f.Type != zapcore.ErrorType {
			out[i] = zap.String(f.Key, redacted)
			continue
		}
		out[i] = f
	}
	return out
}

type environment struct {
	vars   []string
	redact bool
}

// Environment is a field carrying a snapshot of the process environment,
// e.g. os.Environ(). Secret-shaped variables are masked when redact is set.
func Environment(environ []string, redact bool) zap.Field {
	return zap.Object("environment", environment{vars: environ, redact: redact})
}

func (e environment) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	vars := append([]string(nil), e.vars...)
	sort.Strings(vars)

	for _, kv := range vars {
		name, value, _ := strings.Cut(kv, "=")
		if name == "" {
			continue
		}
		if e.redact && IsSecret(name) {
			value = redacted
		}
		enc.AddString(name, value)
	}
	return nil
}
