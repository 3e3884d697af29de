package changelog

import (
	"fmt"
	"strings"
	"time"
)

// Type classifies a change record.
type Type int

// Change types.
const (
	Added Type = iota
	Updated
	Changed
	Renamed
)

var typeNames = [...]string{
	Added:   "Added",
	Updated: "Updated",
	Changed: "Changed",
	Renamed: "Renamed",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "Unknown"
	}

	return typeNames[t]
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	p, err := ParseType(string(b))
	if err != nil {
		return err
	}

	*t = p

	return nil
}

// ParseType converts a type name (case-insensitive) back to a Type.
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if strings.EqualFold(name, s) {
			return Type(i), nil
		}
	}

	return 0, fmt.Errorf("unknown change type %q", s)
}

// Record is one immutable entry of the change log.
type Record struct {
	ID       string    `json:"id" yaml:"id"`
	Time     time.Time `json:"time" yaml:"time"`
	FileName string    `json:"fileName" yaml:"fileName"`
	Type     Type      `json:"type" yaml:"type"`
	Message  string    `json:"message" yaml:"message"`
}

// String renders the record the way list views show it:
// "[15:04:05] name.txt - Changed".
func (r Record) String() string {
	return fmt.Sprintf("[%s] %s - %s", r.Time.Format(time.TimeOnly), r.FileName, r.Type)
}
