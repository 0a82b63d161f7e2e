// Package obslog provides the goroutine-tagged structured logging this
// package uses for its non-fatal warning path: an instance-baseline update
// for a class id the schema does not define, while a Decoder is running in
// non-strict mode.
package obslog

import (
	"github.com/sirupsen/logrus"
	"github.com/timandy/routine"
)

// Warn logs msg at warning level tagged with the calling goroutine's id, so
// log lines from concurrent decoder sessions (spec §6 "a Decoder is not
// safe for concurrent use" does not preclude running several in parallel)
// can be told apart in a shared log stream.
func Warn(logger *logrus.Logger, msg string, fields logrus.Fields) {
	if logger == nil {
		return
	}
	entry := logger.WithField("goroutine", routine.Goid())
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Warn(msg)
}
