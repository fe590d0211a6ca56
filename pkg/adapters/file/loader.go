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

	"github.com/aretw0/multipage/pkg/domain"
)

// Document is a whole graph in one file: the pages in sequence order.
type Document struct {
	Pages []domain.Page `json:"pages"`
}

// Loader implements ports.GraphLoader over a single JSON or YAML document.
// YAML documents are converted to JSON first, so both formats share the
// element and task wire shape.
type Loader struct {
	Path string
}

// NewLoader creates a Loader for path.
func NewLoader(path string) *Loader {
	return &Loader{Path: path}
}

// IsGraphFile reports whether path has an extension the Loader understands.
func IsGraphFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadPages reads and decodes the document.
func (l *Loader) LoadPages(ctx context.Context) ([]domain.Page, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(l.Path))
	if ext == ".yaml" || ext == ".yml" {
		if data, err = yamlToJSON(data); err != nil {
			return nil, fmt.Errorf("failed to parse graph %s: %w", l.Path, err)
		}
	}

	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode graph %s: %w", l.Path, err)
	}
	return doc.Pages, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return json.Marshal(jsonCompatible(raw))
}

func jsonCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, sub := range val {
			val[k] = jsonCompatible(sub)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[fmt.Sprint(k)] = jsonCompatible(sub)
		}
		return out
	case []any:
		for i, sub := range val {
			val[i] = jsonCompatible(sub)
		}
		return val
	}
	return v
}
