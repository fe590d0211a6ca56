package loam

import (
	"github.com/aretw0/multipage/pkg/domain"
)

// PageMetadata is the frontmatter of a page document.
// Element and task entries keep the JSON wire shape of domain.Element and
// domain.Task (id, type, bound_key, props / id, kind, spec).
type PageMetadata struct {
	ID    string `json:"id" mapstructure:"id"`
	Title string `json:"title" mapstructure:"title"`
	Kind  string `json:"kind" mapstructure:"kind"`

	// Order positions the page in the sequence. Ties sort by id.
	Order int `json:"order" mapstructure:"order"`

	Next     string         `json:"next" mapstructure:"next"`
	SkipIf   string         `json:"skip_if" mapstructure:"skip_if"`
	Settings []string       `json:"settings" mapstructure:"settings"`
	Branch   *domain.Branch `json:"branch,omitempty" mapstructure:"branch"`

	Elements []any `json:"elements" mapstructure:"elements"`
	Tasks    []any `json:"tasks" mapstructure:"tasks"`
}
