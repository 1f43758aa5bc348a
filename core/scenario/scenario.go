// Package scenario reads optimization requests from YAML or JSON files.
// Fields missing from a file keep the default site parameters; missing
// profiles are filled with the built-in ones.
package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/ems/core/dispatch"
)

// Load reads a scenario from a .yaml, .yml or .json file.
func Load(path string) (dispatch.Request, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return dispatch.Request{}, err
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	req, err := Decode(bytes.NewReader(b), ext)
	if err != nil {
		return dispatch.Request{}, fmt.Errorf("%s: %w", path, err)
	}
	return req, nil
}

// Decode reads a scenario in the given format ("yaml", "yml" or "json") from r.
func Decode(r io.Reader, format string) (dispatch.Request, error) {
	req := dispatch.NewRequest()
	switch strings.ToLower(format) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&req); err != nil && err != io.EOF {
			return dispatch.Request{}, err
		}
	case "json":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil && err != io.EOF {
			return dispatch.Request{}, err
		}
	default:
		return dispatch.Request{}, fmt.Errorf("unsupported format: %s", format)
	}
	return req.WithDefaults(), nil
}
