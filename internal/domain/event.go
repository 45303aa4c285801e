package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the type of a protocol event.
type Kind int

const (
	KindUnknown Kind = iota
	KindInit
	KindUpload
	KindDownload
	KindTerminate
)

var kindLabels = map[Kind]string{
	KindInit:      "init",
	KindUpload:    "upload",
	KindDownload:  "download",
	KindTerminate: "terminate",
}

var kindCodes = map[string]Kind{
	"init":      KindInit,
	"upload":    KindUpload,
	"download":  KindDownload,
	"terminate": KindTerminate,
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}

	return "unknown"
}

// ParseKind maps the value of the "event" field to a Kind. Matching is exact:
// the protocol uses lowercase names only.
func ParseKind(name string) Kind {
	if kind, ok := kindCodes[name]; ok {
		return kind
	}

	return KindUnknown
}

// Action is the optional transfer action git-lfs sends with upload and
// download events. The agent does not use it but keeps it for diagnostics.
type Action struct {
	Href      string            `json:"href"`
	Header    map[string]string `json:"header,omitempty"`
	ExpiresAt string            `json:"expires_at,omitempty"`
}

// ErrFieldType is returned by Event.FieldError when oid or path is not a
// JSON string.
var ErrFieldType = errors.New("field is not a string")

// Event is one parsed request line. Only event, oid and path drive the
// agent; the rest is informational and decoded leniently.
type Event struct {
	Event     string
	Operation string
	Remote    string
	Oid       string
	Size      int64
	Path      string
	// Action is nil when absent or not shaped like an action object.
	Action *Action

	// Fields holds every top-level field of the line, including ones the
	// agent does not interpret.
	Fields map[string]json.RawMessage

	invalid []string
}

// Kind reports the event kind, derived solely from the "event" field. A
// missing or non-string event is KindUnknown.
func (e Event) Kind() Kind {
	return ParseKind(e.Event)
}

// FieldError reports oid or path fields that were present with a non-string
// value.
func (e Event) FieldError() error {
	if len(e.invalid) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrFieldType, strings.Join(e.invalid, ", "))
}

// ParseEvent decodes a single line. Only input that is not a JSON object is
// an error; fields of the wrong type are dropped or noted in FieldError.
func ParseEvent(line []byte) (Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return Event{}, err
	}
	if fields == nil {
		return Event{}, errors.New("event line is not a JSON object")
	}

	ev := Event{Fields: fields}
	ev.Event, _ = stringField(fields, "event")
	ev.Event = strings.TrimSpace(ev.Event)
	ev.Operation, _ = stringField(fields, "operation")
	ev.Remote, _ = stringField(fields, "remote")

	var ok bool
	if ev.Oid, ok = stringField(fields, "oid"); !ok {
		ev.invalid = append(ev.invalid, "oid")
	}
	if ev.Path, ok = stringField(fields, "path"); !ok {
		ev.invalid = append(ev.invalid, "path")
	}

	if raw, found := fields["size"]; found {
		var size int64
		if json.Unmarshal(raw, &size) == nil {
			ev.Size = size
		}
	}
	if raw, found := fields["action"]; found {
		var action Action
		if json.Unmarshal(raw, &action) == nil {
			ev.Action = &action
		}
	}

	return ev, nil
}

// stringField returns the string value of name. ok is false only when the
// field is present, not null and not a string.
func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, found := fields[name]
	if !found {
		return "", true
	}
	var v *string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	if v == nil {
		return "", true
	}
	return *v, true
}
