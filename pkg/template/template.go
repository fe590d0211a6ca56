// Package template resolves $placeholders in task paths, URLs and text
// against the State Store.
//
// Syntax:
//
//	$name          identifier made of letters, digits and '_'
//	${dotted.key}  any store key
//	$$             a literal '$'
package template

import (
	"fmt"
	"strings"
)

// Lookup returns the text for a placeholder name and whether it is set.
type Lookup func(name string) (string, bool)

// UnresolvedError is returned when a placeholder has no value.
type UnresolvedError struct {
	Name  string
	Input string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved placeholder $%s in %q", e.Name, e.Input)
}

// SyntaxError is returned for an unterminated ${ or an empty name.
type SyntaxError struct {
	Input  string
	Offset int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("malformed placeholder at offset %d in %q", e.Offset, e.Input)
}

// Resolve substitutes every placeholder in s.
func Resolve(s string, lookup Lookup) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}
	var sb strings.Builder
	err := scan(s, func(lit string) {
		sb.WriteString(lit)
	}, func(name string) error {
		v, ok := lookup(name)
		if !ok {
			return &UnresolvedError{Name: name, Input: s}
		}
		sb.WriteString(v)
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ResolveLenient substitutes what it can and leaves unknown placeholders verbatim.
// It is meant for display text, where a missing value must not fail rendering.
func ResolveLenient(s string, lookup Lookup) string {
	if !strings.Contains(s, "$") {
		return s
	}
	var sb strings.Builder
	err := scan(s, func(lit string) {
		sb.WriteString(lit)
	}, func(name string) error {
		if v, ok := lookup(name); ok {
			sb.WriteString(v)
		} else {
			sb.WriteString("${" + name + "}")
		}
		return nil
	})
	if err != nil {
		return s
	}
	return sb.String()
}

// Names lists the placeholders referenced by s, in order of appearance.
func Names(s string) ([]string, error) {
	var names []string
	err := scan(s, func(string) {}, func(name string) error {
		names = append(names, name)
		return nil
	})
	return names, err
}

func scan(s string, literal func(string), placeholder func(string) error) error {
	i := 0
	for i < len(s) {
		j := strings.IndexByte(s[i:], '$')
		if j < 0 {
			literal(s[i:])
			return nil
		}
		literal(s[i : i+j])
		i += j
		if i+1 >= len(s) {
			// A trailing '$' is literal.
			literal("$")
			return nil
		}
		switch next := s[i+1]; {
		case next == '$':
			literal("$")
			i += 2
		case next == '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end <= 0 {
				return &SyntaxError{Input: s, Offset: i}
			}
			if err := placeholder(s[i+2 : i+2+end]); err != nil {
				return err
			}
			i += end + 3
		case isIdent(next):
			k := i + 1
			for k < len(s) && isIdent(s[k]) {
				k++
			}
			if err := placeholder(s[i+1 : k]); err != nil {
				return err
			}
			i = k
		default:
			literal("$")
			i++
		}
	}
	return nil
}

func isIdent(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
