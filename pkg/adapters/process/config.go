package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Command is an allow-listed external program exposed as a function.
type Command struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	// Dir is the working directory, relative to the runner base directory.
	Dir string `yaml:"dir" json:"dir"`
	// Timeout bounds one run, e.g. "30s". Empty means the caller's deadline.
	Timeout     string `yaml:"timeout" json:"timeout"`
	Description string `yaml:"description" json:"description"`

	timeout time.Duration
}

// Config is the layout of a functions file:
//
//	functions:
//	  - name: detect
//	    command: ./scripts/detect.sh
//	    timeout: 10s
type Config struct {
	Functions []Command `yaml:"functions" json:"functions"`
}

// LoadCommands reads a YAML or JSON functions file. A missing file means no
// commands; entries without a name or command are skipped.
func LoadCommands(path string) (map[string]Command, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Command{}, nil
		}
		return nil, fmt.Errorf("failed to read functions file: %w", err)
	}

	var cfg Config
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cmds := make(map[string]Command, len(cfg.Functions))
	for _, c := range cfg.Functions {
		if c.Name == "" || c.Command == "" {
			continue
		}
		if c.Timeout != "" {
			if c.timeout, err = time.ParseDuration(c.Timeout); err != nil {
				return nil, fmt.Errorf("function %s: invalid timeout %q: %w", c.Name, c.Timeout, err)
			}
		}
		cmds[c.Name] = c
	}
	return cmds, nil
}
