// Package confhelper decodes configuration files in the supported formats.
package confhelper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"
)

var ErrUnknownFormat = errors.New("unknown configuration file format")

// OpenAndDecode reads the file at path and decodes it into v, rejecting unknown fields.
//
// The format is chosen by the file extension:
//
//   - ".toml": TOML
//   - ".json": JSON
//   - ".yaml", ".yml": YAML
func OpenAndDecode(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return Decode(filepath.Ext(path), data, v)
}

// Decode decodes data in the format identified by the file extension ext into v,
// rejecting unknown fields.
func Decode(ext string, data []byte, v any) error {
	switch strings.ToLower(ext) {
	case ".toml":
		d := toml.NewDecoder(bytes.NewReader(data))
		d.DisallowUnknownFields()
		return d.Decode(v)

	case ".json":
		d := json.NewDecoder(bytes.NewReader(data))
		d.DisallowUnknownFields()
		return d.Decode(v)

	case ".yaml", ".yml":
		d := yaml.NewDecoder(bytes.NewReader(data))
		d.KnownFields(true)
		return d.Decode(v)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
}

// Duration is a [time.Duration] that is written as a string like "5m" in
// configuration files.
type Duration time.Duration

// Value returns the duration as a [time.Duration].
func (d Duration) Value() time.Duration {
	return time.Duration(d)
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}
