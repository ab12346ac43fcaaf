package capture

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultSuppressedWarnings are warning substrings emitted by framework
// internals that never reach the log buffer or the terminal.
var DefaultSuppressedWarnings = []string{
	"@vue/reactivity-transform",
	"Generated an empty chunk",
}

// Entries tagged with this field and value already went through a
// MemoryLogger, so the interceptor does not record them a second time.
const (
	SourceField   = "source"
	SourceBundler = "bundler"
)

// warnFormatter wraps a logger's formatter to observe warnings.
type warnFormatter struct {
	next       logrus.Formatter
	logs       *Buffer[string]
	suppressed []string
}

func (f *warnFormatter) Format(e *logrus.Entry) ([]byte, error) {
	if e.Level != logrus.WarnLevel {
		return f.next.Format(e)
	}
	for _, s := range f.suppressed {
		if strings.Contains(e.Message, s) {
			// An empty slice makes logrus write nothing.
			return nil, nil
		}
	}
	if e.Data[SourceField] != SourceBundler {
		f.logs.Append(e.Message)
	}
	return f.next.Format(e)
}

// InterceptWarnings makes every warning logged through logger land in logs
// as well as in the logger's output. Warnings containing any of the
// suppressed substrings are dropped from both.
//
// The returned restore func reinstates the logger's previous formatter. It
// is safe to call more than once. Interceptors must be restored in reverse
// order of installation.
func InterceptWarnings(logger *logrus.Logger, logs *Buffer[string], suppressed ...string) (restore func()) {
	prev := logger.Formatter
	if prev == nil {
		prev = &logrus.TextFormatter{}
	}
	logger.SetFormatter(&warnFormatter{
		next:       prev,
		logs:       logs,
		suppressed: append([]string(nil), suppressed...),
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			logger.SetFormatter(prev)
		})
	}
}
