package domain

// PageKind defines how the next page is chosen when leaving a page.
type PageKind string

const (
	// PageLinear continues to Next, or to the following page in sequence.
	PageLinear PageKind = "linear"
	// PageBranch picks its successor from the State Store at advance time.
	PageBranch PageKind = "branch"
	// PageTerminal ends the workflow.
	PageTerminal PageKind = "terminal"
)

// Branch maps the stringified value of a State Store key to a page id.
type Branch struct {
	Key   string            `json:"key" yaml:"key"`
	Cases map[string]string `json:"cases" yaml:"cases"`
}

// Page is an immutable step definition.
type Page struct {
	ID    string   `json:"id" yaml:"id"`
	Title string   `json:"title,omitempty" yaml:"title,omitempty"`
	Kind  PageKind `json:"kind,omitempty" yaml:"kind,omitempty"`

	Elements []Element `json:"elements,omitempty" yaml:"elements,omitempty"`
	Tasks    []Task    `json:"tasks,omitempty" yaml:"tasks,omitempty"`

	// Branch is only set on PageBranch pages.
	Branch *Branch `json:"branch,omitempty" yaml:"branch,omitempty"`

	// SkipIf is a condition evaluated when the page is about to be entered.
	// A true result jumps over the page without rendering it.
	SkipIf string `json:"skip_if,omitempty" yaml:"skip_if,omitempty"`

	// Next overrides sequence order for linear pages.
	Next string `json:"next,omitempty" yaml:"next,omitempty"`

	// Settings lists persisted keys loaded into the store when the page is entered.
	Settings []string `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// EffectiveKind returns the page kind, defaulting to PageLinear.
func (p Page) EffectiveKind() PageKind {
	if p.Kind == "" {
		return PageLinear
	}
	return p.Kind
}

// Element returns the element with the given id.
func (p Page) Element(id string) (Element, bool) {
	for _, el := range p.Elements {
		if el.ID == id {
			return el, true
		}
	}
	return Element{}, false
}

// Task returns the task with the given id.
func (p Page) Task(id string) (Task, bool) {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// TasksFor returns the page tasks fired by the given trigger, in declaration order.
func (p Page) TasksFor(trigger Trigger) []Task {
	var out []Task
	for _, t := range p.Tasks {
		if t.EffectiveTrigger() == trigger {
			out = append(out, t)
		}
	}
	return out
}
