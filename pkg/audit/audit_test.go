package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoguard/geoguard/pkg/contextkeys"
	"github.com/geoguard/geoguard/pkg/docstore"
)

func requestContext() context.Context {
	ctx := context.Background()
	ctx = contextkeys.WithUserID(ctx, "user-1")
	ctx = contextkeys.WithTenantID(ctx, "tenant-1")
	return contextkeys.WithRequestID(ctx, "req-1")
}

func TestNewEventReadsContext(t *testing.T) {
	event := NewEvent(requestContext(), EventTypeTenantCreate, EventStatusSuccess)

	assert.Equal(t, "user-1", event.ActorID)
	assert.Equal(t, "tenant-1", event.TenantID)
	assert.Equal(t, "req-1", event.RequestID)
	assert.NotNil(t, event.Metadata)
	assert.False(t, event.Timestamp.IsZero())
}

func TestStoreLoggerSearch(t *testing.T) {
	ctx := requestContext()
	logger := NewStoreLogger(docstore.NewMemoryStore())

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, eventType := range []EventType{EventTypeLicenseConsume, EventTypeTenantCreate, EventTypeAuthSignUp} {
		event := NewEvent(ctx, eventType, EventStatusSuccess)
		event.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, logger.Log(ctx, event))
		assert.NotEmpty(t, event.ID)
	}
	other := NewEvent(context.Background(), EventTypeTenantCreate, EventStatusSuccess)
	other.TenantID = "tenant-2"
	other.Timestamp = base
	require.NoError(t, logger.Log(ctx, other))

	t.Run("tenant scoped newest first", func(t *testing.T) {
		events, err := logger.Search(ctx, SearchFilter{TenantID: "tenant-1"})
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, EventTypeAuthSignUp, events[0].EventType)
		assert.Equal(t, EventTypeLicenseConsume, events[2].EventType)
	})

	t.Run("event type", func(t *testing.T) {
		events, err := logger.Search(ctx, SearchFilter{EventType: EventTypeTenantCreate})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("time range and limit", func(t *testing.T) {
		start := base.Add(30 * time.Second)
		events, err := logger.Search(ctx, SearchFilter{TenantID: "tenant-1", StartTime: &start, Limit: 1})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeAuthSignUp, events[0].EventType)
	})
}

func TestStoreLoggerCleanup(t *testing.T) {
	ctx := context.Background()
	logger := NewStoreLogger(docstore.NewMemoryStore())
	now := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	old := NewEvent(ctx, EventTypeAuthSignIn, EventStatusSuccess)
	old.Timestamp = now.AddDate(0, 0, -400)
	fresh := NewEvent(ctx, EventTypeAuthSignIn, EventStatusSuccess)
	fresh.Timestamp = now.AddDate(0, 0, -10)
	require.NoError(t, logger.Log(ctx, old))
	require.NoError(t, logger.Log(ctx, fresh))

	removed, err := logger.Cleanup(ctx, DefaultRetentionPolicy(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	events, err := logger.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fresh.ID, events[0].ID)

	removed, err = logger.Cleanup(ctx, RetentionPolicy{}, now)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestFileLoggerWritesAndRolls(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(FileLoggerConfig{Dir: dir, MaxSize: 1, MaxFiles: 2})
	require.NoError(t, err)

	ctx := requestContext()
	for i := 0; i < 4; i++ {
		require.NoError(t, LogSuccess(ctx, logger, EventTypeInvitationCreate, ResourceTypeInvitation, "inv", "invited", nil))
	}

	// every write after the first rolls the one-byte file
	events, err := logger.Tail(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeInvitationCreate, events[0].EventType)
	assert.NotEmpty(t, events[0].ID)

	rolled, err := logger.Rolled()
	require.NoError(t, err)
	assert.Len(t, rolled, 2)
	require.NoError(t, logger.Close())
	assert.Error(t, logger.Log(ctx, NewEvent(ctx, EventTypeAuthSignIn, EventStatusSuccess)))
}

func TestFileLoggerAppendsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	ctx := requestContext()

	for i := 0; i < 2; i++ {
		logger, err := NewFileLogger(DefaultFileLoggerConfig(dir))
		require.NoError(t, err)
		for j := 0; j < 3; j++ {
			require.NoError(t, logger.Log(ctx, NewEvent(ctx, EventTypeAuthSignIn, EventStatusSuccess)))
		}
		require.NoError(t, logger.Close())
	}

	logger, err := NewFileLogger(DefaultFileLoggerConfig(dir))
	require.NoError(t, err)
	defer logger.Close()

	all, err := logger.Tail(0)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	last, err := logger.Tail(2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, all[5].ID, last[1].ID)

	data, err := os.ReadFile(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	assert.Equal(t, 6, strings.Count(string(data), "\n"))
}

func TestNewFileLoggerRequiresDir(t *testing.T) {
	_, err := NewFileLogger(FileLoggerConfig{})
	assert.Error(t, err)
}

type recordingLogger struct {
	events []*AuditEvent
	err    error
	closed bool
}

func (r *recordingLogger) Log(ctx context.Context, event *AuditEvent) error {
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingLogger) Close() error {
	r.closed = true
	return nil
}

func TestMultiLogger(t *testing.T) {
	ctx := requestContext()
	failing := &recordingLogger{err: errors.New("disk full")}
	ok := &recordingLogger{}
	multi := NewMultiLogger(failing, ok)

	err := LogFailure(ctx, multi, EventTypeAuthSignInFailed, "bad password", errors.New("invalid credentials"))
	assert.EqualError(t, err, "disk full")
	require.Len(t, ok.events, 1)
	assert.Equal(t, "invalid credentials", ok.events[0].ErrorMessage)
	// a copy, not the same pointer
	assert.NotSame(t, failing.events[0], ok.events[0])
	assert.Equal(t, failing.events[0].ID, ok.events[0].ID)

	require.NoError(t, multi.Close())
	assert.True(t, ok.closed)
	assert.True(t, failing.closed)
}

func TestExport(t *testing.T) {
	events := []*AuditEvent{{
		ID:        "e1",
		Timestamp: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		EventType: EventTypeLicenseRevoke,
		Status:    EventStatusSuccess,
		ActorID:   "super",
		TenantID:  "PLATFORM",
		Message:   "revoked, duplicate",
	}}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, events, ExportFormatCSV))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "timestamp", rows[0][1])
	assert.Equal(t, "2026-03-14T09:00:00Z", rows[1][1])
	assert.Equal(t, "revoked, duplicate", rows[1][9])

	buf.Reset()
	require.NoError(t, Export(&buf, events, ExportFormatNDJSON))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))

	buf.Reset()
	require.NoError(t, Export(&buf, nil, ""))
	assert.Equal(t, "[]\n", buf.String())

	assert.Error(t, Export(&buf, events, "xml"))
	assert.Equal(t, "text/csv", ContentType(ExportFormatCSV))
	assert.Equal(t, "application/json", ContentType(""))
}
