package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// EngineEvent is one line of the engine's event log. Only the event kinds
// this package consumes are decoded.
type EngineEvent struct {
	Sequence         int               `json:"sequence"`
	Timestamp        int64             `json:"timestamp"`
	ResourcePreEvent *ResourcePreEvent `json:"resourcePreEvent,omitempty"`
	DiagnosticEvent  *DiagnosticEvent  `json:"diagnosticEvent,omitempty"`
}

// ResourcePreEvent announces a step the engine is about to perform.
type ResourcePreEvent struct {
	Metadata *StepMetadata `json:"metadata,omitempty"`
	Planning bool          `json:"planning,omitempty"`
}

// StepMetadata describes the resource a step acts on.
type StepMetadata struct {
	Op           string         `json:"op"`
	URN          string         `json:"urn"`
	Type         string         `json:"type"`
	Dependencies []string       `json:"dependencies,omitempty"`
	New          *StepStateMeta `json:"new,omitempty"`
}

// StepStateMeta is the resource state a step produces.
type StepStateMeta struct {
	Type         string   `json:"type"`
	URN          string   `json:"urn"`
	Parent       string   `json:"parent,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// DiagnosticEvent is a message the engine or a provider reported.
type DiagnosticEvent struct {
	URN      string `json:"urn,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity,omitempty"`
}

// DependencyURNs returns the step's dependencies from whichever field carries them.
func (m *StepMetadata) DependencyURNs() []string {
	if len(m.Dependencies) > 0 {
		return m.Dependencies
	}
	if m.New != nil {
		return m.New.Dependencies
	}
	return nil
}

// DecodeEvent parses one event-log line.
func DecodeEvent(line []byte) (EngineEvent, error) {
	var ev EngineEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return EngineEvent{}, fmt.Errorf("failed to decode engine event: %w", err)
	}
	return ev, nil
}

// ReadEvents decodes a complete event log, calling fn for every event.
// Blank lines are skipped; a malformed line aborts the read.
func ReadEvents(r io.Reader, fn func(EngineEvent)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, scanBufStart), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := DecodeEvent(line)
		if err != nil {
			return err
		}
		fn(ev)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read event log: %w", err)
	}
	return nil
}

// ResourcePreEvents keeps only pre-step events with populated metadata.
func ResourcePreEvents(events []EngineEvent) []*StepMetadata {
	var out []*StepMetadata
	for _, ev := range events {
		if ev.ResourcePreEvent == nil || ev.ResourcePreEvent.Metadata == nil {
			continue
		}
		if ev.ResourcePreEvent.Metadata.URN == "" {
			continue
		}
		out = append(out, ev.ResourcePreEvent.Metadata)
	}
	return out
}

// FormatDiagnostic renders a diagnostic as a severity-tagged log line.
func FormatDiagnostic(d *DiagnosticEvent) string {
	severity := d.Severity
	if severity == "" {
		severity = "info"
	}
	return fmt.Sprintf("[%s] %s", severity, d.Message)
}
