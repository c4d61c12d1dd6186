// Package janitor removes records that no longer affect any decision:
// expired unused invitations, revoked sessions past their expiry and audit
// events outside the retention window.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/geoguard/geoguard/pkg/audit"
)

// Purge kinds reported to the Recorder
const (
	KindInvitations = "invitations"
	KindSessions    = "sessions"
	KindAudit       = "audit"
)

// InvitationPurger removes expired unused invitations
type InvitationPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// SessionPurger removes revocations of sessions that have expired anyway
type SessionPurger interface {
	PurgeRevoked(ctx context.Context, now time.Time) (int, error)
}

// AuditCleaner removes audit events older than the policy allows
type AuditCleaner interface {
	Cleanup(ctx context.Context, policy audit.RetentionPolicy, now time.Time) (int, error)
}

// Recorder receives purge counts
type Recorder interface {
	ObservePurge(kind string, count int)
}

// Janitor runs one purge pass at a time over the configured collaborators.
// Nil collaborators are skipped.
type Janitor struct {
	Invitations InvitationPurger
	Sessions    SessionPurger
	Audit       AuditCleaner
	Retention   audit.RetentionPolicy
	Metrics     Recorder
	Logger      logrus.FieldLogger
	Now         func() time.Time
}

// Report counts what a pass removed
type Report struct {
	Invitations int
	Sessions    int
	Audit       int
}

// Run performs a single pass. Every step runs even when an earlier one
// fails; the returned error joins all failures.
func (j *Janitor) Run(ctx context.Context) (Report, error) {
	now := time.Now().UTC()
	if j.Now != nil {
		now = j.Now()
	}
	logger := j.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var report Report
	var errs []error
	step := func(kind string, run func() (int, error), into *int) {
		n, err := run()
		*into = n
		if j.Metrics != nil && n > 0 {
			j.Metrics.ObservePurge(kind, n)
		}
		entry := logger.WithField("kind", kind).WithField("removed", n)
		if err != nil {
			entry.WithError(err).Error("purge failed")
			errs = append(errs, fmt.Errorf("purge %s: %w", kind, err))
			return
		}
		entry.Info("purge completed")
	}

	if j.Invitations != nil {
		step(KindInvitations, func() (int, error) { return j.Invitations.PurgeExpired(ctx, now) }, &report.Invitations)
	}
	if j.Sessions != nil {
		step(KindSessions, func() (int, error) { return j.Sessions.PurgeRevoked(ctx, now) }, &report.Sessions)
	}
	if j.Audit != nil && j.Retention.RetentionDays > 0 {
		step(KindAudit, func() (int, error) { return j.Audit.Cleanup(ctx, j.Retention, now) }, &report.Audit)
	}
	return report, errors.Join(errs...)
}
