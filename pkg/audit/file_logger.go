package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	currentLogName = "audit.log"
	rolledLogGlob  = "audit-*.log"
	rolledLogTime  = "20060102T150405.000000000Z"
)

// FileLoggerConfig configures a FileLogger
type FileLoggerConfig struct {
	Dir      string
	MaxSize  int64 // bytes before the file rolls over; 0 never rolls
	MaxFiles int   // rolled files kept; 0 keeps all
}

// DefaultFileLoggerConfig rolls at 100 MB and keeps ten rolled files
func DefaultFileLoggerConfig(dir string) FileLoggerConfig {
	return FileLoggerConfig{Dir: dir, MaxSize: 100 << 20, MaxFiles: 10}
}

// FileLogger appends events as NDJSON to audit.log in its directory.
// Rolled files are named audit-<utc timestamp>.log.
type FileLogger struct {
	dir      string
	maxSize  int64
	maxFiles int
	now      func() time.Time

	mu   sync.Mutex
	f    *os.File
	size int64
}

// NewFileLogger creates the directory if needed and opens audit.log for
// appending
func NewFileLogger(cfg FileLoggerConfig) (*FileLogger, error) {
	if cfg.Dir == "" {
		return nil, errors.New("audit log directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	l := &FileLogger{dir: cfg.Dir, maxSize: cfg.MaxSize, maxFiles: cfg.MaxFiles, now: time.Now}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) open() error {
	f, err := os.OpenFile(filepath.Join(l.dir, currentLogName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat audit log: %w", err)
	}
	l.f, l.size = f, info.Size()
	return nil
}

// Log appends event, rolling the file first when the line would push it
// past MaxSize
func (l *FileLogger) Log(ctx context.Context, event *AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return errors.New("audit log is closed")
	}
	if l.maxSize > 0 && l.size > 0 && l.size+int64(len(line)) > l.maxSize {
		if err := l.roll(); err != nil {
			return err
		}
	}
	n, err := l.f.Write(line)
	l.size += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (l *FileLogger) roll() error {
	if err := l.f.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	l.f = nil

	name := "audit-" + l.now().UTC().Format(rolledLogTime)
	target := filepath.Join(l.dir, name+".log")
	for i := 1; fileExists(target); i++ {
		target = filepath.Join(l.dir, fmt.Sprintf("%s-%d.log", name, i))
	}
	if err := os.Rename(filepath.Join(l.dir, currentLogName), target); err != nil {
		return fmt.Errorf("failed to roll audit log: %w", err)
	}
	if err := l.open(); err != nil {
		return err
	}
	return l.prune()
}

// prune removes the oldest rolled files beyond maxFiles
func (l *FileLogger) prune() error {
	if l.maxFiles <= 0 {
		return nil
	}
	rolled, err := l.Rolled()
	if err != nil {
		return err
	}
	var errs []error
	for len(rolled) > l.maxFiles {
		if err := os.Remove(rolled[0]); err != nil {
			errs = append(errs, err)
		}
		rolled = rolled[1:]
	}
	return errors.Join(errs...)
}

// Rolled lists rolled files, oldest first
func (l *FileLogger) Rolled() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(l.dir, rolledLogGlob))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Tail returns the last n events of the current file, or all of them when
// n <= 0
func (l *FileLogger) Tail(n int) ([]*AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(filepath.Join(l.dir, currentLogName))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var events []*AuditEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() {
		event := &AuditEvent{}
		if err := json.Unmarshal(scanner.Bytes(), event); err != nil {
			return nil, fmt.Errorf("failed to decode audit log line: %w", err)
		}
		events = append(events, event)
		if n > 0 && len(events) > n {
			events = events[1:]
		}
	}
	return events, scanner.Err()
}

// Close closes the current file
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
