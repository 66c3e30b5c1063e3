package common

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// testWriter sends each log line to t.Log so output only shows for failing or
// verbose tests.
type testWriter struct {
	t      testing.TB
	prefix string
}

func (w *testWriter) Write(d []byte) (int, error) {
	line := strings.TrimSuffix(string(d), "\n")
	if w.prefix != "" {
		line = w.prefix + ": " + line
	}
	w.t.Log(line)
	return len(d), nil
}

// NewTestLogger returns a debug level logger that writes to t.Log.
func NewTestLogger(t testing.TB) *logrus.Logger {
	logger := logrus.New()
	logger.Out = &testWriter{t: t}
	logger.Level = logrus.DebugLevel
	return logger
}

// NewTestEntry returns a test logger entry with the given prefix field, the
// shape components receive their loggers in.
func NewTestEntry(t testing.TB, prefix string) *logrus.Entry {
	logger := NewTestLogger(t)
	logger.Out = &testWriter{t: t, prefix: prefix}
	return logger.WithField("prefix", prefix)
}
