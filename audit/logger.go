package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config defines audit logging configuration
type Config struct {
	Enabled  bool                   `json:"enabled"`
	Type     ConfigType             `json:"type"`    // "file", "syslog", etc.
	Options  map[string]interface{} `json:"options"` // Provider-specific options
	LogLevel string                 `json:"log_level,omitempty"`
}

type ConfigType string

const (
	FileAuditType   ConfigType = "file"
	SyslogAuditType ConfigType = "syslog"
	NoOp            ConfigType = ""
)

// Logger interface for pluggable audit implementations
type Logger interface {
	Log(action string, success bool, metadata map[string]interface{}) error
	Query(options QueryOptions) (QueryResult, error)
	Close() error
}

// Event represents an audit log event
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	TenantID  string                 `json:"tenant_id,omitempty"`
	Identity  string                 `json:"identity,omitempty"`
	Action    string                 `json:"action"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
	KeyID     string                 `json:"key_id,omitempty"`
	SecretID  string                 `json:"secret_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Source    string                 `json:"source,omitempty"` // IP, hostname, etc.
	SessionID string                 `json:"session_id,omitempty"`
	Command   string                 `json:"command,omitempty"`
	Duration  int64                  `json:"duration_ms,omitempty"`
}

// QueryOptions for filtering audit logs
type QueryOptions struct {
	TenantID string
	Identity string
	Since    *time.Time
	Until    *time.Time
	Action   string
	Success  *bool // nil = all, true = only success, false = only failures
	KeyID    string
	SecretID string
	Limit    int
	Offset   int
}

// QueryResult contains the results of an audit query
type QueryResult struct {
	Events     []Event `json:"events"`
	TotalCount int     `json:"total_count"`
	Filtered   int     `json:"filtered"`
	HasMore    bool    `json:"has_more"`
}

// NewLogger creates an appropriate logger based on configuration
func NewLogger(config *Config) (Logger, error) {
	if config == nil || !config.Enabled {
		return &NoOpLogger{}, nil
	}

	switch config.Type {
	case FileAuditType:
		return NewFileLogger(config)
	case SyslogAuditType:
		return NewSyslogLogger(config)
	case NoOp:
		return &NoOpLogger{}, nil
	default:
		return nil, fmt.Errorf("unknown audit provider: %s", config.Type)
	}
}

// Well-known metadata keys lifted into dedicated Event fields.
const (
	MetaTenantID  = "tenant_id"
	MetaIdentity  = "identity"
	MetaKeyID     = "key_id"
	MetaSecretID  = "secret_id"
	MetaError     = "error"
	MetaSessionID = "session_id"
	MetaSource    = "source"
	MetaCommand   = "command"
)

// newEvent builds an Event from a Log call, promoting well-known metadata
// keys into their dedicated fields so queries can filter on them.
func newEvent(action string, success bool, metadata map[string]interface{}) Event {
	event := Event{
		ID:        generateEventID(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Success:   success,
	}

	if len(metadata) == 0 {
		return event
	}

	remaining := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		s, isString := v.(string)
		switch {
		case k == MetaTenantID && isString:
			event.TenantID = s
		case k == MetaIdentity && isString:
			event.Identity = s
		case k == MetaKeyID && isString:
			event.KeyID = s
		case k == MetaSecretID && isString:
			event.SecretID = s
		case k == MetaError && isString:
			event.Error = s
		case k == MetaSessionID && isString:
			event.SessionID = s
		case k == MetaSource && isString:
			event.Source = s
		case k == MetaCommand && isString:
			event.Command = s
		default:
			remaining[k] = v
		}
	}
	if len(remaining) > 0 {
		event.Metadata = remaining
	}
	return event
}

// matches reports whether an event satisfies the query filters.
func (q QueryOptions) matches(event Event) bool {
	if q.TenantID != "" && event.TenantID != q.TenantID {
		return false
	}
	if q.Identity != "" && event.Identity != q.Identity {
		return false
	}
	if q.Action != "" && event.Action != q.Action {
		return false
	}
	if q.Success != nil && event.Success != *q.Success {
		return false
	}
	if q.KeyID != "" && event.KeyID != q.KeyID {
		return false
	}
	if q.SecretID != "" && event.SecretID != q.SecretID {
		return false
	}
	if q.Since != nil && event.Timestamp.Before(*q.Since) {
		return false
	}
	if q.Until != nil && event.Timestamp.After(*q.Until) {
		return false
	}
	return true
}

// parseOptions converts map[string]interface{} to specific options struct
func parseOptions(options map[string]interface{}, target interface{}) error {
	if len(options) == 0 {
		return nil
	}

	// Convert to JSON and back to parse into struct
	jsonData, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	if err = json.Unmarshal(jsonData, target); err != nil {
		return fmt.Errorf("failed to unmarshal options: %w", err)
	}

	return nil
}
