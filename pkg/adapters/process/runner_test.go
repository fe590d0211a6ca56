package process

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/multipage/pkg/registry"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
}

func TestRunner_Function(t *testing.T) {
	skipOnWindows(t)
	ctx := context.Background()

	r := NewRunner()
	r.Register("greet", "sh", "-c", `echo "hello $MULTIPAGE_KEY_USER_NAME from $MULTIPAGE_PAGE/$MULTIPAGE_TASK"`)
	r.Register("detect", "sh", "-c", `printf '{"found": true, "count": 3}'`)
	r.Register("fail", "sh", "-c", "echo broken >&2; exit 3")

	t.Run("Plain output", func(t *testing.T) {
		writes, err := r.Function("greet")(ctx, registry.Call{
			ID:     "hello",
			PageID: "welcome",
			State:  map[string]any{"user.name": "Ada", "_tasks.x.status": "pending"},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"helloOutput": "hello Ada from welcome/hello"}, writes)
	})

	t.Run("JSON output merges", func(t *testing.T) {
		writes, err := r.Function("detect")(ctx, registry.Call{ID: "scan"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"found": true, "count": json.Number("3")}, writes)
	})

	t.Run("Failure carries stderr", func(t *testing.T) {
		_, err := r.Function("fail")(ctx, registry.Call{ID: "f"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
	})

	t.Run("Unregistered", func(t *testing.T) {
		_, err := r.Function("hacker_script")(ctx, registry.Call{ID: "h"})
		assert.ErrorContains(t, err, "not registered")
	})
}

func TestRunner_InstallAndConfig(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "functions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`functions:
  - name: where
    command: sh
    args: ["-c", "echo $GREETING; pwd"]
    env:
      GREETING: hi
  - name: incomplete
`), 0644))

	cmds, err := LoadCommands(path)
	require.NoError(t, err)
	require.Len(t, cmds, 1, "entries without a command are ignored")

	r := NewRunner(WithCommands(cmds), WithBaseDir(dir))
	assert.Equal(t, []string{"where"}, r.Names())

	reg := registry.NewRegistry()
	r.Install(reg)
	require.True(t, reg.Has("where"))

	writes, err := reg.Invoke(context.Background(), "where", registry.Call{ID: "w"})
	require.NoError(t, err)
	out := writes["wOutput"].(string)
	assert.Contains(t, out, "hi")
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, dir) || strings.Contains(out, resolved), out)

	missing, err := LoadCommands(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "INSTALL_ROOT_DIR2", envName("install.root-dir2"))
}

func TestLoadCommands_DirAndTimeout(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "scripts"), 0755))
	path := filepath.Join(dir, "functions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"functions": [
		{"name": "here", "command": "sh", "args": ["-c", "basename \"$(pwd)\""], "dir": "scripts"},
		{"name": "slow", "command": "sleep", "args": ["5"], "timeout": "50ms"}
	]}`), 0644))

	cmds, err := LoadCommands(path)
	require.NoError(t, err)
	r := NewRunner(WithCommands(cmds), WithBaseDir(dir))

	writes, err := r.Function("here")(context.Background(), registry.Call{ID: "h"})
	require.NoError(t, err)
	assert.Equal(t, "scripts", writes["hOutput"])

	_, err = r.Function("slow")(context.Background(), registry.Call{ID: "s"})
	assert.Error(t, err, "the command timeout kills the process")

	require.NoError(t, os.WriteFile(path, []byte(`{"functions": [{"name": "x", "command": "true", "timeout": "soon"}]}`), 0644))
	_, err = LoadCommands(path)
	assert.ErrorContains(t, err, "invalid timeout")
}
