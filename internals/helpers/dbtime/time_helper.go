// file: internals/helpers/dbtime/time_helper.go
package dbtime

import (
	"fmt"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate reads a request date. Empty input gives nil. Values without a
// zone are taken as UTC; the result is always UTC.
func ParseDate(raw string) (*time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "null" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", raw)
}

// ParseDatePtr is ParseDate for optional JSON fields.
func ParseDatePtr(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	return ParseDate(*raw)
}
