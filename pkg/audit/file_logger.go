package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileLogger implements audit logging to a JSON-lines file with
// size-based rotation.
type FileLogger struct {
	basePath string
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	rotate   bool
	maxSize  int64
	maxFiles int
}

// FileLoggerConfig configures the file logger
type FileLoggerConfig struct {
	BasePath string // Directory for audit logs
	Rotate   bool   // Enable log rotation
	MaxSize  int64  // Max file size in bytes (default: 100MB)
	MaxFiles int    // Max number of rotated files to keep (default: 10)
}

// NewFileLogger creates a file-based audit logger, creating the log
// directory if needed.
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if err := os.MkdirAll(config.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	l := &FileLogger{
		basePath: config.BasePath,
		rotate:   config.Rotate,
		maxSize:  config.MaxSize,
		maxFiles: config.MaxFiles,
	}
	if l.maxSize == 0 {
		l.maxSize = 100 * 1024 * 1024
	}
	if l.maxFiles == 0 {
		l.maxFiles = 10
	}

	if err := l.openLogFile(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) currentPath() string {
	return filepath.Join(l.basePath, "audit.log")
}

func (l *FileLogger) openLogFile() error {
	filename := l.currentPath()

	if l.rotate {
		if info, err := os.Stat(filename); err == nil && info.Size() >= l.maxSize {
			if err := l.rotateFile(); err != nil {
				return err
			}
		}
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	l.file = file
	l.encoder = json.NewEncoder(file)
	return nil
}

func (l *FileLogger) rotateFile() error {
	rotated := filepath.Join(l.basePath,
		fmt.Sprintf("audit-%s.log", time.Now().UTC().Format("20060102T150405")))
	if err := os.Rename(l.currentPath(), rotated); err != nil {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}
	return l.pruneRotated()
}

// pruneRotated removes the oldest rotated files beyond maxFiles. The
// timestamped names sort chronologically.
func (l *FileLogger) pruneRotated() error {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return err
	}

	var rotated []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "audit-") && strings.HasSuffix(name, ".log") {
			rotated = append(rotated, name)
		}
	}
	sort.Strings(rotated)

	for len(rotated) > l.maxFiles {
		if err := os.Remove(filepath.Join(l.basePath, rotated[0])); err != nil {
			return err
		}
		rotated = rotated[1:]
	}
	return nil
}

// Log writes one event as a JSON line. A zero timestamp is filled in.
func (l *FileLogger) Log(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotate {
		if info, err := l.file.Stat(); err == nil && info.Size() >= l.maxSize {
			l.file.Close()
			if err := l.rotateFile(); err != nil {
				return err
			}
			if err := l.openLogFile(); err != nil {
				return err
			}
		}
	}

	return l.encoder.Encode(event)
}

// Close flushes and closes the log file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
