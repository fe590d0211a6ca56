package graph

import (
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/multipage/pkg/condition"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/template"
)

func validate(g *Graph) []string {
	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(g.pages) == 0 {
		return []string{"graph has no pages"}
	}

	for i, p := range g.pages {
		if p.ID == "" {
			report("page #%d has no id", i)
			continue
		}
		if _, dup := g.index[p.ID]; dup {
			report("duplicate page id %q", p.ID)
			continue
		}
		g.index[p.ID] = i
	}

	eval := condition.New()
	owners := make(map[string]string)
	for i, p := range g.pages {
		validatePage(g, i, p, eval, report)
		for _, t := range p.Tasks {
			if t.ID == "" {
				continue
			}
			if prev, dup := owners[t.ID]; dup && prev != p.ID {
				report("task id %q declared on pages %s and %s", t.ID, prev, p.ID)
				continue
			}
			owners[t.ID] = p.ID
		}
	}
	return problems
}

func validatePage(g *Graph, i int, p domain.Page, eval *condition.Evaluator, report func(string, ...any)) {
	exists := func(id string) bool {
		_, ok := g.index[id]
		return ok
	}

	switch p.EffectiveKind() {
	case domain.PageLinear:
		if p.Branch != nil {
			report("page %s: branch set on a linear page", p.ID)
		}
	case domain.PageBranch:
		if p.Branch == nil || p.Branch.Key == "" {
			report("page %s: branch page needs a discriminant key", p.ID)
		} else if len(p.Branch.Cases) == 0 {
			report("page %s: branch page needs at least one case", p.ID)
		} else {
			for value, target := range p.Branch.Cases {
				if !exists(target) {
					report("page %s: case %q targets unknown page %q", p.ID, value, target)
				}
			}
		}
		if p.Next != "" {
			report("page %s: branch page cannot declare next", p.ID)
		}
	case domain.PageTerminal:
		if p.Next != "" || p.Branch != nil {
			report("page %s: terminal page cannot have successors", p.ID)
		}
		if p.SkipIf != "" {
			report("page %s: terminal page cannot be skipped", p.ID)
		}
	default:
		report("page %s: unknown kind %q", p.ID, p.Kind)
	}

	if p.Next != "" && !exists(p.Next) {
		report("page %s: next targets unknown page %q", p.ID, p.Next)
	}
	if p.SkipIf != "" {
		if err := eval.Compile(p.SkipIf); err != nil {
			report("page %s: skip_if: %v", p.ID, err)
		}
		if p.EffectiveKind() == domain.PageLinear && p.Next == "" && i == len(g.pages)-1 {
			report("page %s: skippable page needs a successor", p.ID)
		}
	}

	taskIDs := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if t.ID == "" {
			report("page %s: task without id", p.ID)
			continue
		}
		if taskIDs[t.ID] {
			report("page %s: duplicate task id %q", p.ID, t.ID)
		}
		taskIDs[t.ID] = true
		validateTask(p, t, eval, report)
	}
	validateWriteSets(p, report)

	elementIDs := make(map[string]bool, len(p.Elements))
	for _, el := range p.Elements {
		if el.ID == "" {
			report("page %s: element without id", p.ID)
			continue
		}
		if elementIDs[el.ID] {
			report("page %s: duplicate element id %q", p.ID, el.ID)
		}
		elementIDs[el.ID] = true
		validateElement(p, el, taskIDs, report)
	}
}

func validateElement(p domain.Page, el domain.Element, taskIDs map[string]bool, report func(string, ...any)) {
	if el.Props == nil {
		report("page %s: element %s has no props", p.ID, el.ID)
		return
	}
	if el.Props.ElementType() != el.Type {
		report("page %s: element %s declares type %s but carries %s props", p.ID, el.ID, el.Type, el.Props.ElementType())
	}
	if el.Required && el.BoundKey == "" {
		report("page %s: required element %s is not bound", p.ID, el.ID)
	}

	switch props := el.Props.(type) {
	case domain.TagListProps:
		if len(props.Options) == 0 {
			report("page %s: tag list %s has no options", p.ID, el.ID)
		}
	case domain.SettingsProps:
		if len(props.Keys) == 0 {
			report("page %s: settings block %s lists no keys", p.ID, el.ID)
		}
	case domain.BranchSelectorProps:
		if p.EffectiveKind() != domain.PageBranch || p.Branch == nil {
			report("page %s: branch selector %s outside a branch page", p.ID, el.ID)
		} else if el.BoundKey != p.Branch.Key {
			report("page %s: branch selector %s must bind %q", p.ID, el.ID, p.Branch.Key)
		}
		if len(props.Options) == 0 {
			report("page %s: branch selector %s has no options", p.ID, el.ID)
		}
	case domain.TaskProps:
		if !taskIDs[props.TaskID] {
			report("page %s: task element %s references unknown task %q", p.ID, el.ID, props.TaskID)
		}
	case domain.TextProps:
		if el.BoundKey != "" {
			report("page %s: text element %s cannot be bound", p.ID, el.ID)
		}
	}
}

func validateTask(p domain.Page, t domain.Task, eval *condition.Evaluator, report func(string, ...any)) {
	switch t.EffectiveNotification() {
	case domain.NotifySync, domain.NotifyAsync:
	default:
		report("page %s: task %s has unknown notification %q", p.ID, t.ID, t.Notification)
	}
	switch t.EffectiveTrigger() {
	case domain.TriggerOnEnter, domain.TriggerOnSubmit:
	default:
		report("page %s: task %s has unknown trigger %q", p.ID, t.ID, t.Trigger)
	}
	if t.Spec == nil {
		report("page %s: task %s has no spec", p.ID, t.ID)
		return
	}
	if t.Spec.TaskKind() != t.Kind {
		report("page %s: task %s declares kind %s but carries %s spec", p.ID, t.ID, t.Kind, t.Spec.TaskKind())
	}

	checkTemplate := func(field, s string) {
		if _, err := template.Names(s); err != nil {
			report("page %s: task %s %s: %v", p.ID, t.ID, field, err)
		}
	}

	switch s := t.Spec.(type) {
	case domain.ValidateSpec:
		switch s.Check {
		case domain.CheckExists, domain.CheckDirectory:
			if s.Path == "" {
				report("page %s: task %s needs a path", p.ID, t.ID)
			}
			checkTemplate("path", s.Path)
		case domain.CheckExpr:
			if err := eval.Compile(s.Expr); err != nil {
				report("page %s: task %s expr: %v", p.ID, t.ID, err)
			}
		case domain.CheckFunction:
			if s.Function == "" {
				report("page %s: task %s needs a function", p.ID, t.ID)
			}
		default:
			report("page %s: task %s has unknown check %q", p.ID, t.ID, s.Check)
		}
	case domain.DownloadSpec:
		if s.Source == "" {
			report("page %s: task %s needs a source", p.ID, t.ID)
		}
		checkTemplate("source", s.Source)
		checkTemplate("dest", s.Dest)
		if s.Timeout != "" {
			if _, err := time.ParseDuration(s.Timeout); err != nil {
				report("page %s: task %s timeout: %v", p.ID, t.ID, err)
			}
		}
	case domain.ExtractSpec:
		if s.Source == "" || s.Dest == "" {
			report("page %s: task %s needs source and dest", p.ID, t.ID)
		}
		checkTemplate("source", s.Source)
		checkTemplate("dest", s.Dest)
	case domain.CustomSpec:
		if s.Function == "" {
			report("page %s: task %s needs a function", p.ID, t.ID)
		}
	case domain.PersistSpec:
		if len(s.Keys) == 0 {
			report("page %s: task %s persists no keys", p.ID, t.ID)
		}
	}
}

// validateWriteSets rejects async tasks of one page that may write the same key.
func validateWriteSets(p domain.Page, report func(string, ...any)) {
	owner := make(map[string]string)
	for _, t := range p.Tasks {
		if t.EffectiveNotification() != domain.NotifyAsync || t.Spec == nil {
			continue
		}
		for _, key := range t.WriteSet() {
			if prev, ok := owner[key]; ok && prev != t.ID {
				report("page %s: async tasks %s and %s both write %q", p.ID, prev, t.ID, key)
				continue
			}
			owner[key] = t.ID
		}
	}
}

func sortedCaseValues(cases map[string]string) []string {
	values := make([]string, 0, len(cases))
	for v := range cases {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
