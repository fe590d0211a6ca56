// Package store implements the State Store: a hierarchical key-value
// document shared by every element and task of a workflow run.
//
// Keys are dotted paths ("install.root"). Values are JSON-like: string, bool,
// json.Number, []any, map[string]any or nil. Go numeric types are normalized
// to json.Number on write so that documents survive a JSON round trip
// unchanged.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrUnsupportedValue is returned when writing a value that is not JSON-like.
var ErrUnsupportedValue = errors.New("unsupported value type")

// ErrInvalidKey is returned for empty keys or keys with empty segments.
var ErrInvalidKey = errors.New("invalid key")

// Store is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	root   map[string]any
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for debug tracing of writes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{root: make(map[string]any)}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Get returns the value at key and whether it is set.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := lookup(s.root, key)
	if !ok {
		return nil, false
	}
	return deepCopy(v), true
}

// Has reports whether key is set.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := lookup(s.root, key)
	return ok
}

// Set writes value at key, creating intermediate maps as needed.
// A scalar found on the path is replaced by a map.
func (s *Store) Set(key string, value any) error {
	norm, err := Normalize(value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	segs, err := split(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	assign(s.root, segs, norm)
	s.logger.Debug("store set", "key", key)
	return nil
}

// Merge applies every entry of partial in one critical section.
// Keys may be dotted. Nothing is written if any value is invalid.
// A map merged over an existing map is merged key by key, so nested keys
// already set survive.
func (s *Store) Merge(partial map[string]any) error {
	type write struct {
		segs  []string
		value any
	}
	writes := make([]write, 0, len(partial))
	keys := make([]string, 0, len(partial))
	for k := range partial {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		segs, err := split(k)
		if err != nil {
			return err
		}
		norm, err := Normalize(partial[k])
		if err != nil {
			return fmt.Errorf("merge %s: %w", k, err)
		}
		writes = append(writes, write{segs: segs, value: norm})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range writes {
		mergeAt(s.root, w.segs, w.value)
	}
	s.logger.Debug("store merge", "keys", keys)
	return nil
}

// Snapshot returns a deep copy of the whole document.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepCopy(s.root).(map[string]any)
}

// Restore replaces the whole document.
func (s *Store) Restore(values map[string]any) error {
	norm, err := Normalize(values)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	m, _ := norm.(map[string]any)
	if m == nil {
		m = make(map[string]any)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = m
	return nil
}

// Keys returns every dotted leaf key, sorted. Empty maps count as leaves.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	collectKeys(s.root, "", &out)
	sort.Strings(out)
	return out
}

// String returns the value at key as a string, or "" when unset.
func (s *Store) String(key string) string {
	v, ok := s.Get(key)
	if !ok {
		return ""
	}
	return Stringify(v)
}

// Bool returns the value at key as a bool, or false when unset.
// Strings are parsed so that values loaded from settings files behave.
func (s *Store) Bool(key string) bool {
	v, ok := s.Get(key)
	if !ok {
		return false
	}
	return Truthy(v)
}

// List returns the value at key as a list, or an empty list when unset.
// A scalar is wrapped in a single-element list.
func (s *Store) List(key string) []any {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return []any{}
	}
	if l, ok := v.([]any); ok {
		return l
	}
	return []any{v}
}

// Int returns the value at key as an int, or 0 when unset or not numeric.
func (s *Store) Int(key string) int {
	v, ok := s.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	case bool:
		if n {
			return 1
		}
	}
	return 0
}

// Empty reports whether the value at key fails a "required" check:
// unset, nil, "", false, an empty list or an empty map.
func (s *Store) Empty(key string) bool {
	v, ok := s.Get(key)
	if !ok {
		return true
	}
	return IsEmpty(v)
}

// IsEmpty applies the "required" check to a value.
func IsEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

// Truthy converts a store value to a bool.
func Truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	}
	return !IsEmpty(v)
}

// Stringify renders a store value as text: bools as "true"/"false", numbers
// by their decimal text, lists joined with ",", nil as "".
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, Stringify(item))
		}
		return strings.Join(parts, ",")
	case map[string]any:
		data, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(data)
	}
	return fmt.Sprint(v)
}

func split(key string) ([]string, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	segs := strings.Split(key, ".")
	for _, seg := range segs {
		if seg == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return segs, nil
}

// Lookup reads a dotted key out of a snapshot document.
func Lookup(root map[string]any, key string) (any, bool) {
	return lookup(root, key)
}

func lookup(root map[string]any, key string) (any, bool) {
	if key == "" {
		return nil, false
	}
	var cur any = root
	for _, seg := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func assign(root map[string]any, segs []string, value any) {
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}

// mergeAt is assign, except that a map lands inside an existing map.
func mergeAt(root map[string]any, segs []string, value any) {
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	last := segs[len(segs)-1]
	incoming, isMap := value.(map[string]any)
	existing, hasMap := cur[last].(map[string]any)
	if !isMap || !hasMap {
		cur[last] = value
		return
	}
	for k, v := range incoming {
		mergeAt(existing, []string{k}, v)
	}
}

func collectKeys(m map[string]any, prefix string, out *[]string) {
	for k, v := range m {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok && len(child) > 0 {
			collectKeys(child, full, out)
			continue
		}
		*out = append(*out, full)
	}
}
