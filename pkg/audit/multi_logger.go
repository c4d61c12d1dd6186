package audit

import (
	"context"
	"errors"
)

// MultiLogger writes every event to each of its loggers in order. A failing
// logger does not stop the others.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log implements Logger.Log. Later loggers get a copy of event taken after
// the first one filled in ID and Timestamp, so all destinations agree.
func (m *MultiLogger) Log(ctx context.Context, event *AuditEvent) error {
	var errs []error
	for i, logger := range m.loggers {
		e := event
		if i > 0 {
			copied := *event
			e = &copied
		}
		if err := logger.Log(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every logger
func (m *MultiLogger) Close() error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
