package dbcache

// Fields carries the structured context of a log line, typically "group", "key" and "err".
type Fields map[string]any

// Logger receives the engine's diagnostics: readiness decisions, sweep counts and
// store failures. Adapters for zap, logrus and slog live under log/.
// If Logger is nil in Options, NopLogger is used.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger discards every message. It is the default when Options.Logger is nil.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
