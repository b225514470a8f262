package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so it can be expressed in TOML as a plain
// string ("60s", "2m30s") instead of an integer count of nanoseconds.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler, called by toml.Decode
// for any string-typed TOML value assigned to a Duration field.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
