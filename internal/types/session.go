package types

import "time"

// Session correlates the tool calls, cache lookups, and briefings of one
// interaction under a single identifier. Sessions are never deleted; history
// is retained for analytics.
type Session struct {
	ID        string         `json:"id"`
	Query     string         `json:"query"`
	History   []SessionEvent `json:"history"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SessionEvent is one entry in a session's ordered interaction history.
type SessionEvent struct {
	Kind      string         `json:"kind"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ToolCallRecord is best-effort telemetry for one instrumented operation.
// One record per invocation, append-only.
type ToolCallRecord struct {
	ID           string        `json:"id"`
	SessionID    string        `json:"session_id"`
	Tool         string        `json:"tool"`
	Args         string        `json:"args"`
	ResponseSize int           `json:"response_size"`
	Elapsed      time.Duration `json:"elapsed"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}
