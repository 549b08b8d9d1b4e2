// audit/file_logger.go
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// FileLogger appends events to a JSONL file and serves queries by
// scanning it. Rotation is size-based with numbered backups.
type FileLogger struct {
	file     *os.File
	mu       sync.Mutex
	config   *Config
	fileOpts FileOptions
}

type FileOptions struct {
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size,omitempty"`    // Max size in MB
	MaxBackups int    `json:"max_backups,omitempty"` // Max backup files
}

// NewFileLogger creates a new file-based audit logger
func NewFileLogger(config *Config) (*FileLogger, error) {
	var fileOpts FileOptions
	if err := parseOptions(config.Options, &fileOpts); err != nil {
		return nil, fmt.Errorf("invalid file logger options: %w", err)
	}

	if fileOpts.FilePath == "" {
		return nil, fmt.Errorf("file_path is required for file logger")
	}

	// Set defaults
	if fileOpts.MaxSize == 0 {
		fileOpts.MaxSize = 100 // 100MB
	}
	if fileOpts.MaxBackups == 0 {
		fileOpts.MaxBackups = 5
	}

	if err := os.MkdirAll(filepath.Dir(fileOpts.FilePath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(fileOpts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &FileLogger{
		file:     file,
		config:   config,
		fileOpts: fileOpts,
	}, nil
}

// Log implements the Logger interface
func (fl *FileLogger) Log(action string, success bool, metadata map[string]interface{}) error {
	return fl.writeEvent(newEvent(action, success, metadata))
}

func (fl *FileLogger) writeEvent(event Event) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	if err = fl.rotateIfNeeded(len(line) + 1); err != nil {
		return err
	}

	if _, err = fl.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// rotateIfNeeded shifts the current log to a numbered backup when the next
// write would exceed the size limit. Caller holds the mutex.
func (fl *FileLogger) rotateIfNeeded(pending int) error {
	info, err := fl.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat audit log: %w", err)
	}
	if info.Size()+int64(pending) < int64(fl.fileOpts.MaxSize)*1024*1024 {
		return nil
	}

	if err = fl.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log for rotation: %w", err)
	}

	// Shift backups: file.N-1 -> file.N, current -> file.1
	for i := fl.fileOpts.MaxBackups - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", fl.fileOpts.FilePath, i)
		if _, statErr := os.Stat(src); statErr == nil {
			os.Rename(src, fmt.Sprintf("%s.%d", fl.fileOpts.FilePath, i+1))
		}
	}
	if err = os.Rename(fl.fileOpts.FilePath, fl.fileOpts.FilePath+".1"); err != nil {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}

	fl.file, err = os.OpenFile(fl.fileOpts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to reopen audit log: %w", err)
	}
	return nil
}

// Query scans the current log file and returns matching events.
// Rotated backups are not scanned.
func (fl *FileLogger) Query(options QueryOptions) (QueryResult, error) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	f, err := os.Open(fl.fileOpts.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return QueryResult{}, nil
		}
		return QueryResult{}, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var matched []Event
	total := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var event Event
		if err = json.Unmarshal(scanner.Bytes(), &event); err != nil {
			// Skip malformed lines rather than failing the whole query
			continue
		}
		total++
		if options.matches(event) {
			matched = append(matched, event)
		}
	}
	if err = scanner.Err(); err != nil {
		return QueryResult{}, fmt.Errorf("failed to scan audit log: %w", err)
	}

	filtered := len(matched)

	// Apply pagination
	if options.Offset > 0 {
		if options.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[options.Offset:]
		}
	}
	hasMore := false
	if options.Limit > 0 && len(matched) > options.Limit {
		matched = matched[:options.Limit]
		hasMore = true
	}

	return QueryResult{
		Events:     matched,
		TotalCount: total,
		Filtered:   filtered,
		HasMore:    hasMore,
	}, nil
}

// Close implements the Logger interface
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.file == nil {
		return nil
	}
	err := fl.file.Close()
	fl.file = nil
	return err
}

// generateEventID creates a unique event ID
func generateEventID() string {
	return uuid.NewString()
}
