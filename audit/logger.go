package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config defines audit logging configuration
type Config struct {
	Enabled  bool                   `json:"enabled"`
	Type     ConfigType             `json:"type"`    // "file", "syslog" or ""
	Options  map[string]interface{} `json:"options"` // Provider-specific options
	LogLevel string                 `json:"log_level,omitempty"`
}

type ConfigType string

const (
	FileAuditType   ConfigType = "file"
	SyslogAuditType ConfigType = "syslog"
	NoOp            ConfigType = ""
)

// Actions recorded by TPMPass. Events never carry secret values, keys or
// identity bytes; only paths, sizes and outcomes.
const (
	ActionIdentityLoaded     = "IDENTITY_LOADED"
	ActionIdentityRecreated  = "IDENTITY_RECREATED"
	ActionIdentityInitFailed = "IDENTITY_INIT_FAILED"
	ActionEncryptFile        = "ENCRYPT_FILE"
	ActionDecryptFile        = "DECRYPT_FILE"
	ActionScanGate           = "SCAN_GATE"
	ActionClipboardExpose    = "CLIPBOARD_EXPOSE"
	ActionClipboardClear     = "CLIPBOARD_CLEAR"
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
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Action    string                 `json:"action"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
	Path      string                 `json:"path,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Source    string                 `json:"source,omitempty"` // hostname
	Duration  int64                  `json:"duration_ms,omitempty"`
}

// QueryOptions for filtering audit logs
type QueryOptions struct {
	Since          *time.Time
	Until          *time.Time
	Action         string
	Success        *bool // nil = all, true = only success, false = only failures
	Path           string
	Limit          int
	Offset         int
	IdentityEvents bool // only master identity lifecycle events
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

// newEvent lifts the well-known metadata keys into Event fields. The
// caller's map is left untouched.
func newEvent(action string, success bool, in map[string]interface{}) Event {
	event := Event{
		ID:        generateEventID(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Success:   success,
	}
	if len(in) == 0 {
		return event
	}
	metadata := make(map[string]interface{}, len(in))
	for k, v := range in {
		metadata[k] = v
	}
	event.Metadata = metadata
	if v, ok := metadata["request_id"].(string); ok {
		event.RequestID = v
		delete(metadata, "request_id")
	}
	if v, ok := metadata["path"].(string); ok {
		event.Path = v
		delete(metadata, "path")
	}
	if v, ok := metadata["error"].(string); ok {
		event.Error = v
		delete(metadata, "error")
	}
	if v, ok := metadata["user_id"].(string); ok {
		event.UserID = v
		delete(metadata, "user_id")
	}
	if v, ok := metadata["duration_ms"].(int64); ok {
		event.Duration = v
		delete(metadata, "duration_ms")
	}
	if len(metadata) == 0 {
		event.Metadata = nil
	}
	return event
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
