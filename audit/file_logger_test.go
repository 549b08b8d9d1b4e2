package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestFileLogger(t *testing.T, options map[string]interface{}) *FileLogger {
	t.Helper()

	if options == nil {
		options = map[string]interface{}{}
	}
	if _, ok := options["file_path"]; !ok {
		options["file_path"] = filepath.Join(t.TempDir(), "audit.log")
	}

	logger, err := NewFileLogger(&Config{
		Enabled: true,
		Type:    FileAuditType,
		Options: options,
	})
	if err != nil {
		t.Fatalf("Failed to create file logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestFileLoggerRequiresPath(t *testing.T) {
	_, err := NewFileLogger(&Config{Enabled: true, Type: FileAuditType})
	if err == nil {
		t.Fatal("Expected error for missing file_path")
	}
}

func TestFileLoggerLogAndQuery(t *testing.T) {
	logger := newTestFileLogger(t, nil)

	err := logger.Log("create_key", true, map[string]interface{}{
		MetaTenantID: "tenant-a",
		MetaIdentity: "ci",
		MetaKeyID:    "ci/signing",
	})
	if err != nil {
		t.Fatalf("Failed to log event: %v", err)
	}
	err = logger.Log("sign", false, map[string]interface{}{
		MetaTenantID: "tenant-a",
		MetaKeyID:    "ci/signing",
		MetaError:    "record not found",
	})
	if err != nil {
		t.Fatalf("Failed to log event: %v", err)
	}

	result, err := logger.Query(QueryOptions{})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if result.TotalCount != 2 || len(result.Events) != 2 {
		t.Fatalf("Expected 2 events, got total=%d matched=%d", result.TotalCount, len(result.Events))
	}

	first := result.Events[0]
	if first.ID == "" {
		t.Error("Expected generated event id")
	}
	if first.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
	if first.Action != "create_key" || !first.Success {
		t.Errorf("Unexpected first event: %+v", first)
	}

	// Well-known metadata keys are promoted into fields
	if first.TenantID != "tenant-a" || first.Identity != "ci" || first.KeyID != "ci/signing" {
		t.Errorf("Expected promoted metadata fields, got %+v", first)
	}
	if len(first.Metadata) != 0 {
		t.Errorf("Expected no residual metadata, got %v", first.Metadata)
	}

	second := result.Events[1]
	if second.Success || second.Error != "record not found" {
		t.Errorf("Unexpected second event: %+v", second)
	}
}

func TestFileLoggerQueryFilters(t *testing.T) {
	logger := newTestFileLogger(t, nil)

	logger.Log("create_key", true, map[string]interface{}{MetaTenantID: "tenant-a", MetaKeyID: "ci/a"})
	logger.Log("create_key", true, map[string]interface{}{MetaTenantID: "tenant-b", MetaKeyID: "ci/b"})
	logger.Log("store_secret", false, map[string]interface{}{MetaTenantID: "tenant-a", MetaSecretID: "app/s"})

	result, err := logger.Query(QueryOptions{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(result.Events) != 2 {
		t.Errorf("Expected 2 tenant-a events, got %d", len(result.Events))
	}

	result, err = logger.Query(QueryOptions{Action: "create_key"})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(result.Events) != 2 {
		t.Errorf("Expected 2 create_key events, got %d", len(result.Events))
	}

	failed := false
	result, err = logger.Query(QueryOptions{Success: &failed})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(result.Events) != 1 || result.Events[0].Action != "store_secret" {
		t.Errorf("Expected the single failed event, got %+v", result.Events)
	}

	result, err = logger.Query(QueryOptions{KeyID: "ci/b"})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(result.Events) != 1 || result.Events[0].TenantID != "tenant-b" {
		t.Errorf("Expected the tenant-b key event, got %+v", result.Events)
	}
}

func TestFileLoggerQueryTimeRange(t *testing.T) {
	logger := newTestFileLogger(t, nil)

	logger.Log("create_key", true, nil)

	future := time.Now().UTC().Add(time.Hour)
	result, err := logger.Query(QueryOptions{Since: &future})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(result.Events) != 0 {
		t.Errorf("Expected no events after future cutoff, got %d", len(result.Events))
	}

	past := time.Now().UTC().Add(-time.Hour)
	result, err = logger.Query(QueryOptions{Since: &past, Until: &future})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(result.Events) != 1 {
		t.Errorf("Expected 1 event in range, got %d", len(result.Events))
	}
}

func TestFileLoggerPagination(t *testing.T) {
	logger := newTestFileLogger(t, nil)

	for i := 0; i < 5; i++ {
		logger.Log("sign", true, nil)
	}

	result, err := logger.Query(QueryOptions{Limit: 2})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(result.Events) != 2 || !result.HasMore {
		t.Errorf("Expected 2 events with more available, got %d hasMore=%v", len(result.Events), result.HasMore)
	}
	if result.Filtered != 5 {
		t.Errorf("Expected filtered count 5, got %d", result.Filtered)
	}

	result, err = logger.Query(QueryOptions{Offset: 4})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(result.Events) != 1 || result.HasMore {
		t.Errorf("Expected 1 trailing event, got %d hasMore=%v", len(result.Events), result.HasMore)
	}

	result, err = logger.Query(QueryOptions{Offset: 10})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(result.Events) != 0 {
		t.Errorf("Expected no events past the end, got %d", len(result.Events))
	}
}

func TestFileLoggerSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger := newTestFileLogger(t, map[string]interface{}{"file_path": path})

	logger.Log("create_key", true, nil)
	logger.Close()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		t.Fatalf("Failed to open log: %v", err)
	}
	f.WriteString("this is not json\n")
	f.Close()

	reopened := newTestFileLogger(t, map[string]interface{}{"file_path": path})
	result, err := reopened.Query(QueryOptions{})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(result.Events) != 1 {
		t.Errorf("Expected the malformed line to be skipped, got %d events", len(result.Events))
	}
}

func TestNoOpLogger(t *testing.T) {
	logger, err := NewLogger(nil)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	if _, ok := logger.(*NoOpLogger); !ok {
		t.Errorf("Expected NoOpLogger for nil config, got %T", logger)
	}
	if err = logger.Log("anything", true, nil); err != nil {
		t.Errorf("NoOp log failed: %v", err)
	}
	if err = logger.Close(); err != nil {
		t.Errorf("NoOp close failed: %v", err)
	}

	disabled, err := NewLogger(&Config{Enabled: false, Type: FileAuditType})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	if _, ok := disabled.(*NoOpLogger); !ok {
		t.Errorf("Expected NoOpLogger for disabled config, got %T", disabled)
	}
}

func TestNewLoggerUnknownType(t *testing.T) {
	if _, err := NewLogger(&Config{Enabled: true, Type: ConfigType("kafka")}); err == nil {
		t.Error("Expected error for unknown logger type")
	}
}
