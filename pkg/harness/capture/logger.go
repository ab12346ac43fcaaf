package capture

import (
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/thesyncim/playground-harness/pkg/bundler"
)

// MemoryLogger is a bundler.Logger that appends every message to a Buffer
// instead of a terminal.
type MemoryLogger struct {
	logs *Buffer[string]

	mu     sync.Mutex
	warned bool
	errors map[error]struct{}
	once   map[string]struct{}
}

var _ bundler.Logger = (*MemoryLogger)(nil)

// NewMemoryLogger creates a MemoryLogger writing into logs.
func NewMemoryLogger(logs *Buffer[string]) *MemoryLogger {
	return &MemoryLogger{
		logs:   logs,
		errors: make(map[error]struct{}),
		once:   make(map[string]struct{}),
	}
}

// Info appends msg.
func (l *MemoryLogger) Info(msg string) {
	l.logs.Append(msg)
}

// Warn appends msg and marks the logger as warned.
func (l *MemoryLogger) Warn(msg string) {
	l.logs.Append(msg)
	l.mu.Lock()
	l.warned = true
	l.mu.Unlock()
}

// WarnOnce is Warn for messages not seen before; repeats are dropped.
func (l *MemoryLogger) WarnOnce(msg string) {
	l.warnOnce(msg)
}

// warnOnce records msg unless it was seen before and reports whether it did.
func (l *MemoryLogger) warnOnce(msg string) bool {
	l.mu.Lock()
	if _, seen := l.once[msg]; seen {
		l.mu.Unlock()
		return false
	}
	l.once[msg] = struct{}{}
	l.warned = true
	l.mu.Unlock()
	l.logs.Append(msg)
	return true
}

// Error appends msg and, when opts carries an error, remembers that exact
// error value for HasErrorLogged.
func (l *MemoryLogger) Error(msg string, opts bundler.LogErrorOptions) {
	l.logs.Append(msg)
	if !trackable(opts.Error) {
		return
	}
	l.mu.Lock()
	l.errors[opts.Error] = struct{}{}
	l.mu.Unlock()
}

// ClearScreen does nothing; there is no screen.
func (l *MemoryLogger) ClearScreen() {}

// HasWarned reports whether any warning was logged.
func (l *MemoryLogger) HasWarned() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warned
}

// HasErrorLogged reports whether err is the same value previously passed to
// Error. Two distinct errors with the same text are not the same value.
func (l *MemoryLogger) HasErrorLogged(err error) bool {
	if !trackable(err) {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.errors[err]
	return ok
}

// trackable reports whether err can be used as a map key. Errors whose
// dynamic type is not comparable have no identity to track.
func trackable(err error) bool {
	return err != nil && reflect.TypeOf(err).Comparable()
}

// LogrusLogger is a bundler.Logger that forwards to a logrus logger.
type LogrusLogger struct {
	log logrus.FieldLogger
	mem *MemoryLogger
}

var _ bundler.Logger = (*LogrusLogger)(nil)

// NewLogrusLogger forwards bundler output to log.
func NewLogrusLogger(log logrus.FieldLogger) *LogrusLogger {
	return Tee(NewMemoryLogger(NewBuffer[string]()), log)
}

// Tee returns a bundler.Logger that records into mem and also forwards to
// log. Forwarded entries are tagged so a warning interceptor on the same
// logger does not record them twice.
func Tee(mem *MemoryLogger, log logrus.FieldLogger) *LogrusLogger {
	return &LogrusLogger{log: log.WithField(SourceField, SourceBundler), mem: mem}
}

// Info records msg and logs it at info level.
func (l *LogrusLogger) Info(msg string) {
	l.mem.Info(msg)
	l.log.Info(msg)
}

// Warn records msg and logs it at warn level.
func (l *LogrusLogger) Warn(msg string) {
	l.mem.Warn(msg)
	l.log.Warn(msg)
}

// WarnOnce records and logs msg the first time it is seen.
func (l *LogrusLogger) WarnOnce(msg string) {
	if l.mem.warnOnce(msg) {
		l.log.Warn(msg)
	}
}

// Error records msg and logs it with opts.Error attached, if any.
func (l *LogrusLogger) Error(msg string, opts bundler.LogErrorOptions) {
	l.mem.Error(msg, opts)
	if opts.Error != nil {
		l.log.WithError(opts.Error).Error(msg)
		return
	}
	l.log.Error(msg)
}

// ClearScreen is a no-op.
func (l *LogrusLogger) ClearScreen() {}

// HasWarned reports whether a warning was recorded.
func (l *LogrusLogger) HasWarned() bool { return l.mem.HasWarned() }

// HasErrorLogged reports whether err was passed to Error.
func (l *LogrusLogger) HasErrorLogged(err error) bool { return l.mem.HasErrorLogged(err) }
