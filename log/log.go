// Package log configures the logrus logger shared by ytrss commands.
package log

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New creates a logger writing to w at the given level. Logs never go to
// stdout, which carries command results.
func New(w io.Writer, level string, json bool) (*logrus.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	if json {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// Setup applies the same settings to the standard logger, which packages
// fall back to when no logger is injected.
func Setup(w io.Writer, level string, json bool) (*logrus.Logger, error) {
	logger, err := New(w, level, json)
	if err != nil {
		return nil, err
	}
	std := logrus.StandardLogger()
	std.SetOutput(logger.Out)
	std.SetLevel(logger.GetLevel())
	std.SetFormatter(logger.Formatter)
	return std, nil
}
