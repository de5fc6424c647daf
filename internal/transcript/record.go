// Package transcript decodes Claude Code session files: line-delimited JSON,
// one record per line, append-only.
package transcript

import "time"

// Kind classifies a decoded record.
type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindSummary   Kind = "summary"
	KindTool      Kind = "tool-invocation"
)

// ParseKind maps a user-supplied kind name to a Kind. ok is false for
// anything outside the known set.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindUser, KindAssistant, KindSummary, KindTool:
		return Kind(s), true
	}
	// accept the wire spelling too
	if s == "tool_use" {
		return KindTool, true
	}
	return "", false
}

// Record is one decoded line of a session file. Records are immutable after
// decoding; within one file timestamps are non-decreasing.
type Record struct {
	UUID       string
	ParentUUID string
	SessionID  string
	Kind       Kind
	Timestamp  time.Time
	Cwd        string
	Branch     string

	// Content is the searchable text extracted from the message payload.
	// Empty for payloads that carry no prose (e.g. raw tool parameters).
	Content string

	// Summary is set only on summary records, which are file-level metadata
	// rather than conversation content.
	Summary string

	// ToolUse reports whether the record carried tool_use blocks even when
	// its Kind is user or assistant.
	ToolUse bool

	// Line is the 1-based line number in the source file.
	Line int
}

// HasToolActivity reports whether a record represents tool usage. This is a
// best-effort classifier: tool-invocation records always qualify, and so do
// assistant records that embed tool_use blocks.
func HasToolActivity(r *Record) bool {
	return r.Kind == KindTool || r.ToolUse
}
