package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/multipage/pkg/store"
)

// Settings implements ports.SettingsFile as a flat JSON or YAML document.
// The format follows the file extension; anything but .yaml/.yml is JSON.
type Settings struct {
	Path string
}

// NewSettings creates a settings file at path.
func NewSettings(path string) *Settings {
	return &Settings{Path: path}
}

func (s *Settings) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(s.Path))
	return ext == ".yaml" || ext == ".yml"
}

// Read returns the document. A missing or empty file reads as empty.
// Non-string values written by hand are converted to their text form.
func (s *Settings) Read(ctx context.Context) (map[string]string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]string{}, nil
	}

	raw := map[string]any{}
	if s.isYAML() {
		err = yaml.Unmarshal(data, &raw)
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", s.Path, err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if norm, err := store.Normalize(v); err == nil {
			v = norm
		}
		out[k] = store.Stringify(v)
	}
	return out, nil
}

// Write replaces the document atomically. Keys are written sorted.
func (s *Settings) Write(ctx context.Context, values map[string]string) error {
	var (
		data []byte
		err  error
	)
	if s.isYAML() {
		data, err = yaml.Marshal(values)
	} else {
		data, err = json.MarshalIndent(values, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return writeAtomic(s.Path, data)
}
