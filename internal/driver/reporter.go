package driver

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Reporter is a single injected sink for log output from the classification
// loop. Extractor call sites report warnings and per-image verbose lines
// through it instead of calling log directly, so tests can substitute a
// capturing implementation.
type Reporter interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// LogrusReporter is the default Reporter, wrapping sirupsen/logrus the same
// way every other package in this module does.
type LogrusReporter struct{}

// Debugf logs at debug level; these are the per-image verbose lines only
// visible under --verbose.
func (LogrusReporter) Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// Infof logs at info level.
func (LogrusReporter) Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Warnf logs at warn level.
func (LogrusReporter) Warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

// RecordingReporter captures messages instead of logging them, for use in
// tests that need to assert a degradation path was actually taken.
type RecordingReporter struct {
	Debugs []string
	Infos  []string
	Warns  []string
}

// Debugf records the formatted message.
func (r *RecordingReporter) Debugf(format string, args ...interface{}) {
	r.Debugs = append(r.Debugs, fmt.Sprintf(format, args...))
}

// Infof records the formatted message.
func (r *RecordingReporter) Infof(format string, args ...interface{}) {
	r.Infos = append(r.Infos, fmt.Sprintf(format, args...))
}

// Warnf records the formatted message.
func (r *RecordingReporter) Warnf(format string, args ...interface{}) {
	r.Warns = append(r.Warns, fmt.Sprintf(format, args...))
}
