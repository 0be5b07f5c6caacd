// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, "info", "text")
)

// Init replaces the shared logger. Unknown levels fall back to info, unknown
// formats to text.
func Init(out io.Writer, level, format string) *logrus.Logger {
	l := newLogger(out, level, format)
	mu.Lock()
	logger = l
	mu.Unlock()
	return l
}

// For returns an entry tagged with the component name.
func For(component string) *logrus.Entry {
	mu.RLock()
	defer mu.RUnlock()
	return logger.WithField("component", component)
}

func Logger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func newLogger(out io.Writer, level, format string) *logrus.Logger {
	l := logrus.New()
	if out == nil {
		out = os.Stderr
	}
	l.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}
