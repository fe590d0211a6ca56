package multipage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/multipage/pkg/adapters/file"
	"github.com/aretw0/multipage/pkg/adapters/hcl"
	"github.com/aretw0/multipage/pkg/adapters/loam"
	"github.com/aretw0/multipage/pkg/ports"
)

// OpenLoader picks a GraphLoader for path:
//   - a .json, .yaml or .yml file is one graph document;
//   - a .hcl file, or a directory holding .hcl files, is an HCL graph;
//   - any other directory is a loam repository of Markdown pages.
func OpenLoader(path string) (ports.GraphLoader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	if !info.IsDir() {
		switch {
		case file.IsGraphFile(path):
			return file.NewLoader(path), nil
		case strings.EqualFold(filepath.Ext(path), ".hcl"):
			return hcl.New(path), nil
		}
		return nil, fmt.Errorf("unsupported graph file %s", path)
	}

	matches, err := doublestar.Glob(os.DirFS(path), "**/*.hcl", doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	if len(matches) > 0 {
		return hcl.New(path), nil
	}
	l, err := loam.Open(path)
	if err != nil {
		return nil, err
	}
	return l, nil
}
