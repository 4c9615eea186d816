package types

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// DateTimeLayout is the wire format of timestamps in API payloads.
const DateTimeLayout = "2006-01-02 15:04:05"

// inputLayouts are tried in order when parsing a caller-supplied date-time.
var inputLayouts = []string{
	DateTimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04",
	"2006-01-02",
}

// ErrInvalidDateTime is returned when a value matches none of the accepted layouts.
var ErrInvalidDateTime = errors.New("invalid date-time")

// ParseDateTime parses a date-time string in any accepted layout.
// Values without an offset are interpreted as UTC.
func ParseDateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrInvalidDateTime
	}
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDateTime
}

// DateTime is a time.Time encoded as "YYYY-MM-DD HH:MM:SS".
type DateTime time.Time

// Time returns the underlying time value.
func (d DateTime) Time() time.Time {
	return time.Time(d)
}

func (d DateTime) String() string {
	return time.Time(d).Format(DateTimeLayout)
}

// MarshalJSON implements json.Marshaler.
func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DateTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return ErrInvalidDateTime
	}
	t, err := ParseDateTime(raw)
	if err != nil {
		return err
	}
	*d = DateTime(t)
	return nil
}
