// Package document loads authored question documents and normalises them
// to canonical JSON.
package document

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Header is the part of every document shared by all question types.
type Header struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Version string `json:"version,omitempty"`
}

// Load reads a .json, .yaml or .yml file and returns its content as JSON.
func Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json", "":
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported document extension %q", filepath.Ext(path))
	}
}

// FromYAML converts a YAML document to JSON.
func FromYAML(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	v = normalize(v)
	if m, ok := v.(map[string]any); ok {
		versionString(m)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return out, nil
}

// versionString turns an unquoted YAML version such as `version: 2` or
// `version: 1.2` into the string the header expects.
func versionString(m map[string]any) {
	switch n := m["version"].(type) {
	case int:
		m["version"] = strconv.Itoa(n)
	case float64:
		m["version"] = strconv.FormatFloat(n, 'f', -1, 64)
	}
}

// normalize rewrites the map[any]any nodes yaml can produce for non-string
// keys into JSON-compatible maps.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}

// ReadHeader extracts the shared header fields.
func ReadHeader(raw []byte) (Header, error) {
	var h Header
	if err := json.Unmarshal(raw, &h); err != nil {
		return Header{}, fmt.Errorf("read document header: %w", err)
	}
	if h.Type == "" {
		return Header{}, fmt.Errorf("document %q has no type", h.ID)
	}
	return h, nil
}
