package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexID is an identifier issued by the backend. The backend uses integers for
// some resources and strings for others, so the raw JSON form is kept and
// written back unchanged.
type FlexID struct {
	raw json.RawMessage
}

// NewFlexID creates an identifier from its textual form. Purely numeric text
// becomes a JSON number, anything else a JSON string.
func NewFlexID(s string) FlexID {
	if s == "" {
		return FlexID{}
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return FlexID{raw: json.RawMessage(s)}
	}
	raw, _ := json.Marshal(s)
	return FlexID{raw: raw}
}

// String returns the identifier as it appears in URLs
func (id FlexID) String() string {
	if len(id.raw) == 0 {
		return ""
	}
	if id.raw[0] == '"' {
		var s string
		if err := json.Unmarshal(id.raw, &s); err == nil {
			return s
		}
	}
	return string(id.raw)
}

// IsZero reports whether no identifier was set
func (id FlexID) IsZero() bool {
	return len(id.raw) == 0
}

// Equal compares identifiers by their textual form, so 42 and "42" match
func (id FlexID) Equal(other FlexID) bool {
	return id.String() == other.String()
}

// MarshalJSON writes the identifier in the form the backend issued it
func (id FlexID) MarshalJSON() ([]byte, error) {
	if len(id.raw) == 0 {
		return []byte("null"), nil
	}
	return id.raw, nil
}

// UnmarshalJSON accepts JSON strings and numbers; anything else yields a zero id
func (id *FlexID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		id.raw = nil
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if s == "" {
			id.raw = nil
			return nil
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
	default:
		id.raw = nil
		return nil
	}
	id.raw = append(json.RawMessage(nil), trimmed...)
	return nil
}
