package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

const maxLineSize = 10 * 1024 * 1024 // 10MB

// Warning records a line that failed structural validation and was skipped.
type Warning struct {
	Line int
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %v", w.Line, w.Err)
}

// Decoder yields records from one session file, one line at a time.
// It is forward-only and buffers at most one line; malformed lines are
// skipped and recorded as warnings, never aborting the stream.
type Decoder struct {
	scanner   *bufio.Scanner
	sessionID string
	line      int
	warnings  []Warning
}

// NewDecoder returns a Decoder reading from r. sessionID is the fallback
// session identifier (usually the file name) for records that omit one.
func NewDecoder(r io.Reader, sessionID string) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: sc, sessionID: sessionID}
}

// Warnings returns the lines skipped so far. Valid at any point during
// decoding; complete once Next has returned io.EOF.
func (d *Decoder) Warnings() []Warning {
	return d.warnings
}

type rawLine struct {
	UUID       string          `json:"uuid"`
	ParentUUID string          `json:"parentUuid"`
	Type       string          `json:"type"`
	IsMeta     bool            `json:"isMeta"`
	Timestamp  string          `json:"timestamp"`
	SessionID  string          `json:"sessionId"`
	Cwd        string          `json:"cwd"`
	GitBranch  string          `json:"gitBranch"`
	Summary    string          `json:"summary"`
	Message    json.RawMessage `json:"message"`
}

type rawMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Thinking string `json:"thinking"`
	Name     string `json:"name"`
}

// Next returns the next record, or io.EOF when the file is exhausted.
// Any other error is an I/O failure on the underlying reader.
func (d *Decoder) Next() (Record, error) {
	for d.scanner.Scan() {
		d.line++
		line := d.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw rawLine
		if err := json.Unmarshal(line, &raw); err != nil {
			d.warn(fmt.Errorf("malformed record: %w", err))
			continue
		}

		// meta lines are valid but carry no conversation content
		if raw.IsMeta {
			continue
		}

		rec, err := d.build(&raw)
		if err != nil {
			d.warn(err)
			continue
		}
		return rec, nil
	}

	if err := d.scanner.Err(); err != nil {
		return Record{}, err
	}
	return Record{}, io.EOF
}

func (d *Decoder) warn(err error) {
	d.warnings = append(d.warnings, Warning{Line: d.line, Err: err})
}

func (d *Decoder) build(raw *rawLine) (Record, error) {
	rec := Record{
		UUID:       raw.UUID,
		ParentUUID: raw.ParentUUID,
		SessionID:  raw.SessionID,
		Cwd:        raw.Cwd,
		Branch:     raw.GitBranch,
		Line:       d.line,
	}
	if rec.SessionID == "" {
		rec.SessionID = d.sessionID
	}

	switch raw.Type {
	case "summary":
		// leading summary records may lack uuid and timestamp
		rec.Kind = KindSummary
		rec.Summary = raw.Summary
		rec.Timestamp = parseTimestamp(raw.Timestamp)
		return rec, nil
	case "user":
		rec.Kind = KindUser
	case "assistant":
		rec.Kind = KindAssistant
	case "tool_use":
		rec.Kind = KindTool
	default:
		return Record{}, fmt.Errorf("unknown record type %q", raw.Type)
	}

	if raw.UUID == "" {
		return Record{}, fmt.Errorf("%s record missing uuid", raw.Type)
	}

	rec.Timestamp = parseTimestamp(raw.Timestamp)
	if rec.Timestamp.IsZero() {
		return Record{}, fmt.Errorf("%s record has invalid timestamp %q", raw.Type, raw.Timestamp)
	}

	if len(raw.Message) > 0 {
		var msg rawMessage
		if err := json.Unmarshal(raw.Message, &msg); err != nil {
			return Record{}, fmt.Errorf("malformed message payload: %w", err)
		}
		rec.Content, rec.ToolUse = extractContent(msg.Content)
	}

	return rec, nil
}

// extractContent pulls searchable text out of a message content payload,
// which is either a plain string or an array of typed blocks. Tool
// parameters are not text and are excluded from the searchable content.
func extractContent(raw json.RawMessage) (text string, toolUse bool) {
	if len(raw) == 0 {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), false
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", false
	}

	var parts []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case "thinking":
			if b.Thinking != "" {
				parts = append(parts, b.Thinking)
			} else if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case "tool_use":
			toolUse = true
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), toolUse
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	// ISO8601 without timezone
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
