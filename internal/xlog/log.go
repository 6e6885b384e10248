// Package xlog is the module-wide structured logger, grounded on
// aldrin-isaac-newtron's pkg/util/log.go: a single package-level logrus
// instance with small With* helpers, rather than threading a logger
// through every call site.
package xlog

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ovnxlate/ovnxlate/internal/ratelimit"
)

// Logger is the global logger instance.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.InfoLevel)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLevel sets the logging level by name.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

// WithField returns a logger with one field set.
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithFields returns a logger with multiple fields set.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// limiter is the process-wide rate limiter backing Warnf (spec.md §7: every
// warning in the engine is rate-limited so malformed input cannot flood logs).
var limiter = ratelimit.New(time.Second)

// Warnf logs a rate-limited warning under the given kind key. Kind should
// name the allocator/resource/object class involved (e.g. "tunnel-key:datapath",
// "ipam:exhausted:ls0") so that unrelated failures don't suppress each other.
func Warnf(kind string, fields logrus.Fields, format string, args ...interface{}) {
	if !limiter.Allow(kind, time.Now()) {
		return
	}
	Logger.WithFields(fields).Warnf(format, args...)
}
