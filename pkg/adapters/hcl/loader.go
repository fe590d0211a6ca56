// Package hcl loads page definitions from HCL files.
//
//	page "welcome" {
//	  title = "Welcome"
//
//	  element "name" {
//	    type     = "input"
//	    bind     = "name"
//	    required = true
//	    props    = { label = "Your name" }
//	  }
//
//	  task "check" {
//	    kind = "validate"
//	    spec = { check = "exists", path = "$root" }
//	  }
//	}
//
// Pages keep file order; files are read in lexical order. HCL interpolates
// "${...}", so dotted placeholders are written "$${install.path}".
package hcl

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/aretw0/multipage/pkg/domain"
)

type hclFile struct {
	Pages []*hclPage `hcl:"page,block"`
}

type hclPage struct {
	ID       string        `hcl:"id,label"`
	Title    string        `hcl:"title,optional"`
	Kind     string        `hcl:"kind,optional"`
	Next     string        `hcl:"next,optional"`
	SkipIf   string        `hcl:"skip_if,optional"`
	Settings []string      `hcl:"settings,optional"`
	Branch   *hclBranch    `hcl:"branch,block"`
	Elements []*hclElement `hcl:"element,block"`
	Tasks    []*hclTask    `hcl:"task,block"`
}

type hclBranch struct {
	Key   string            `hcl:"key"`
	Cases map[string]string `hcl:"cases"`
}

type hclElement struct {
	ID       string     `hcl:"id,label"`
	Type     string     `hcl:"type"`
	Bind     string     `hcl:"bind,optional"`
	Required bool       `hcl:"required,optional"`
	OnChange string     `hcl:"on_change,optional"`
	Props    *cty.Value `hcl:"props,optional"`
}

type hclTask struct {
	ID           string     `hcl:"id,label"`
	Kind         string     `hcl:"kind"`
	Notification string     `hcl:"notification,optional"`
	Trigger      string     `hcl:"trigger,optional"`
	Required     bool       `hcl:"required,optional"`
	Writes       []string   `hcl:"writes,optional"`
	Spec         *cty.Value `hcl:"spec,optional"`
}

// Loader implements ports.GraphLoader over a file or a directory of *.hcl files.
type Loader struct {
	Path string
}

// New creates a Loader for path.
func New(path string) *Loader {
	return &Loader{Path: path}
}

// LoadPages parses every file and returns the pages in order.
func (l *Loader) LoadPages(ctx context.Context) ([]domain.Page, error) {
	files, err := l.files()
	if err != nil {
		return nil, err
	}

	parser := hclparse.NewParser()
	var pages []domain.Page
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		filePages, err := parseFile(parser, file)
		if err != nil {
			return nil, err
		}
		pages = append(pages, filePages...)
	}
	return pages, nil
}

func (l *Loader) files() ([]string, error) {
	info, err := os.Stat(l.Path)
	if err != nil {
		return nil, fmt.Errorf("hcl: %w", err)
	}
	if !info.IsDir() {
		return []string{l.Path}, nil
	}
	matches, err := doublestar.Glob(os.DirFS(l.Path), "**/*.hcl", doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("hcl: find files in %s: %w", l.Path, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("hcl: no .hcl files in %s: %w", l.Path, fs.ErrNotExist)
	}
	slices.Sort(matches)
	files := make([]string, len(matches))
	for i, m := range matches {
		files[i] = filepath.Join(l.Path, filepath.FromSlash(m))
	}
	return files, nil
}

func parseFile(parser *hclparse.Parser, path string) ([]domain.Page, error) {
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	pages := make([]domain.Page, 0, len(parsed.Pages))
	for _, hp := range parsed.Pages {
		p, err := hp.toDomain()
		if err != nil {
			return nil, fmt.Errorf("%s: page %q: %w", path, hp.ID, err)
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func (hp *hclPage) toDomain() (domain.Page, error) {
	p := domain.Page{
		ID:       hp.ID,
		Title:    hp.Title,
		Kind:     domain.PageKind(hp.Kind),
		Next:     hp.Next,
		SkipIf:   hp.SkipIf,
		Settings: hp.Settings,
	}
	if hp.Branch != nil {
		p.Branch = &domain.Branch{Key: hp.Branch.Key, Cases: hp.Branch.Cases}
	}

	for _, he := range hp.Elements {
		raw, err := objectToMap(he.Props)
		if err != nil {
			return domain.Page{}, fmt.Errorf("element %q props: %w", he.ID, err)
		}
		props, err := domain.DecodeProps(domain.ElementType(he.Type), raw)
		if err != nil {
			return domain.Page{}, fmt.Errorf("element %q: %w", he.ID, err)
		}
		p.Elements = append(p.Elements, domain.Element{
			ID:       he.ID,
			Type:     domain.ElementType(he.Type),
			BoundKey: he.Bind,
			Required: he.Required,
			OnChange: he.OnChange,
			Props:    props,
		})
	}

	for _, ht := range hp.Tasks {
		raw, err := objectToMap(ht.Spec)
		if err != nil {
			return domain.Page{}, fmt.Errorf("task %q spec: %w", ht.ID, err)
		}
		spec, err := domain.DecodeSpec(domain.TaskKind(ht.Kind), raw)
		if err != nil {
			return domain.Page{}, fmt.Errorf("task %q: %w", ht.ID, err)
		}
		p.Tasks = append(p.Tasks, domain.Task{
			ID:           ht.ID,
			Kind:         domain.TaskKind(ht.Kind),
			Notification: domain.Notification(ht.Notification),
			Trigger:      domain.Trigger(ht.Trigger),
			Required:     ht.Required,
			Writes:       ht.Writes,
			Spec:         spec,
		})
	}
	return p, nil
}

func objectToMap(v *cty.Value) (map[string]any, error) {
	if v == nil || v.IsNull() {
		return nil, nil
	}
	native, err := ctyToNative(*v)
	if err != nil {
		return nil, err
	}
	m, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %s", v.Type().FriendlyName())
	}
	return m, nil
}
