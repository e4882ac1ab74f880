package common

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	localDateTimeLayout = "2006-01-02T15:04:05"
	dateLayout          = "2006-01-02"
)

// StringArg returns args[name] when it is a string.
func StringArg(args map[string]interface{}, name string) string {
	s, _ := args[name].(string)
	return s
}

// OptionalString returns a pointer to args[name] when the argument is
// present, even when it is empty.
func OptionalString(args map[string]interface{}, name string) *string {
	s, ok := args[name].(string)
	if !ok {
		return nil
	}
	return &s
}

// RequiredString returns args[name] or an error when it is missing or empty.
func RequiredString(args map[string]interface{}, name string) (string, error) {
	s, ok := args[name].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return s, nil
}

// BoolArg returns args[name] when it is a bool.
func BoolArg(args map[string]interface{}, name string) bool {
	b, _ := args[name].(bool)
	return b
}

// IntArg returns args[name] as an int. JSON numbers arrive as float64.
func IntArg(args map[string]interface{}, name string, fallback int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

// StringListArg parses a list argument given as an array, a JSON array
// encoded in a string, or a comma-separated string.
func StringListArg(args map[string]interface{}, name string) ([]string, error) {
	switch v := args[name].(type) {
	case nil:
		return nil, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", name, i)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") {
			var out []string
			if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
				return nil, fmt.Errorf("%s is not a valid JSON array: %w", name, err)
			}
			return out, nil
		}
		var out []string
		for _, part := range strings.Split(trimmed, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", name)
	}
}

// ParseTime accepts RFC3339, a local date-time without offset interpreted
// in loc, or a bare date. dateOnly is true for a bare date.
func ParseTime(value string, loc *time.Location) (t time.Time, dateOnly bool, err error) {
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, false, nil
	}
	if t, err := time.ParseInLocation(localDateTimeLayout, value, loc); err == nil {
		return t, false, nil
	}
	if t, err := time.ParseInLocation(dateLayout, value, loc); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid time %q: use RFC3339 (2025-01-15T14:00:00Z), a local time (2025-01-15T14:00:00) or a date (2025-01-15)", value)
}

// HasOffset reports whether value is an RFC3339 time carrying its own
// offset, as opposed to a local time or a date.
func HasOffset(value string) bool {
	_, err := time.Parse(time.RFC3339, value)
	return err == nil
}

// TimeArg parses args[name] with ParseTime. ok is false when the argument
// is absent.
func TimeArg(args map[string]interface{}, name string, loc *time.Location) (t time.Time, dateOnly, ok bool, err error) {
	s := StringArg(args, name)
	if s == "" {
		return time.Time{}, false, false, nil
	}
	t, dateOnly, err = ParseTime(s, loc)
	if err != nil {
		return time.Time{}, false, true, fmt.Errorf("%s: %w", name, err)
	}
	return t, dateOnly, true, nil
}

// LoadLocation resolves an IANA zone name. Empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", name, err)
	}
	return loc, nil
}
