// Package process exposes allow-listed external commands as registry
// functions, so that custom tasks can run host scripts.
//
// Only commands registered up front can run. Store values never become
// command-line arguments; they reach the process as environment variables.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/multipage/pkg/registry"
	"github.com/aretw0/multipage/pkg/store"
)

// EnvPrefix starts every variable the runner adds to the process environment.
const EnvPrefix = "MULTIPAGE_"

// Runner executes registered commands.
type Runner struct {
	registry map[string]Command
	baseDir  string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithCommands populates the allow-list from a loaded functions file.
func WithCommands(cmds map[string]Command) RunnerOption {
	return func(r *Runner) {
		for name, c := range cmds {
			c.Name = name
			r.registry[name] = c
		}
	}
}

// WithBaseDir sets the working directory for executed processes. Relative
// command directories are resolved against it.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]Command),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted script/command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = Command{Name: name, Command: command, Args: args}
}

// Names lists the registered commands, sorted.
func (r *Runner) Names() []string {
	return slices.Sorted(maps.Keys(r.registry))
}

// Install registers every command as a function of reg under its own name.
func (r *Runner) Install(reg *registry.Registry) {
	for _, name := range r.Names() {
		reg.Register(name, r.Function(name))
	}
}

// Function returns the registry function running the named command.
//
// The process sees MULTIPAGE_PAGE, MULTIPAGE_TASK, MULTIPAGE_VALUE (for
// change callbacks) and one MULTIPAGE_KEY_<KEY> per store key. A JSON object
// printed on stdout is merged into the store; any other output is written to
// "<id>Output".
func (r *Runner) Function(name string) registry.Function {
	return func(ctx context.Context, call registry.Call) (map[string]any, error) {
		proc, ok := r.registry[name]
		if !ok {
			return nil, fmt.Errorf("process function not registered: %s", name)
		}
		if proc.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, proc.timeout)
			defer cancel()
		}

		cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
		cmd.Dir = r.dir(proc)
		cmd.Env = append(cmd.Environ(), environment(proc, call)...)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("%s: execution failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
		}
		return parseOutput(call.ID, stdout.Bytes())
	}
}

func (r *Runner) dir(proc Command) string {
	if proc.Dir == "" {
		return r.baseDir
	}
	if filepath.IsAbs(proc.Dir) || r.baseDir == "" {
		return proc.Dir
	}
	return filepath.Join(r.baseDir, proc.Dir)
}

func environment(proc Command, call registry.Call) []string {
	env := []string{
		EnvPrefix + "PAGE=" + call.PageID,
		EnvPrefix + "TASK=" + call.ID,
	}
	if call.Value != nil {
		env = append(env, EnvPrefix+"VALUE="+envValue(call.Value))
	}
	for _, k := range slices.Sorted(maps.Keys(call.State)) {
		if strings.HasPrefix(k, "_") {
			continue
		}
		env = append(env, EnvPrefix+"KEY_"+envName(k)+"="+envValue(call.State[k]))
	}
	for _, k := range slices.Sorted(maps.Keys(proc.Environment)) {
		env = append(env, k+"="+proc.Environment[k])
	}
	return env
}

// envName upper-cases k and replaces anything but letters and digits with '_'.
func envName(k string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, k)
}

// envValue formats scalars as text and structured values as JSON.
func envValue(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
	}
	return store.Stringify(v)
}

func parseOutput(id string, out []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(out)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var writes map[string]any
		if err := dec.Decode(&writes); err == nil {
			return writes, nil
		}
	}
	if len(trimmed) == 0 {
		return nil, nil
	}
	return map[string]any{id + "Output": string(trimmed)}, nil
}
