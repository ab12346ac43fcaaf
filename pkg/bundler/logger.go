package bundler

// LogErrorOptions carries the error object behind an Error log call.
type LogErrorOptions struct {
	Error error
}

// Logger is the logging interface a bundler writes its output through.
type Logger interface {
	Info(msg string)
	Warn(msg string)
	// WarnOnce logs msg only the first time it is seen.
	WarnOnce(msg string)
	Error(msg string, opts LogErrorOptions)
	ClearScreen()
	// HasWarned reports whether any warning was ever logged.
	HasWarned() bool
	// HasErrorLogged reports whether err itself was passed to Error.
	HasErrorLogged(err error) bool
}

type nopLogger struct{}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Info(string)                   {}
func (nopLogger) Warn(string)                   {}
func (nopLogger) WarnOnce(string)               {}
func (nopLogger) Error(string, LogErrorOptions) {}
func (nopLogger) ClearScreen()                  {}
func (nopLogger) HasWarned() bool               { return false }
func (nopLogger) HasErrorLogged(error) bool     { return false }
