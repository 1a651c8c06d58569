// Package logging configures the shared logrus logger gosmeagle's
// commands and library code write progress and error lines through. It
// intentionally owns no package-level global beyond the one logrus
// already provides (logrus.StandardLogger()); callers that need a
// scoped logger use New or a WithField chain off it.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Configure sets the standard logger's level and formatter. verbose
// selects Debug level; otherwise Info. Output always goes to stderr so
// stdout stays free for the JSON corpus (spec §6).
func Configure(verbose bool) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   false,
		TimestampFormat: "15:04:05",
	})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// New returns a logger scoped to a component name, e.g. New("x86_64").
func New(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}

// Discard returns a logger that writes nowhere, for tests that want to
// exercise logging call sites without polluting test output.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
