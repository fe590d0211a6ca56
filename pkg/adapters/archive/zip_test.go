package archive_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/multipage/pkg/adapters/archive"
	"github.com/aretw0/multipage/pkg/ports"
)

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.zip")
	out, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(out)
	for name, body := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestZip_Unzip(t *testing.T) {
	src := writeZip(t, map[string]string{
		"Plugin/plugin.vst3": "binary",
		"Plugin/docs/readme": "hello",
	})
	dest := t.TempDir()

	files, err := archive.New().Unzip(context.Background(), src, dest, ports.ExtractOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dest, "Plugin", "plugin.vst3"),
		filepath.Join(dest, "Plugin", "docs", "readme"),
	}, files)
	assert.Equal(t, "hello", readFile(t, filepath.Join(dest, "Plugin", "docs", "readme")))
	assert.FileExists(t, src)
}

func TestZip_SkipFirstComponentAndDelete(t *testing.T) {
	src := writeZip(t, map[string]string{
		"Plugin/":            "",
		"Plugin/plugin.vst3": "binary",
		"top-level.txt":      "dropped",
	})
	dest := t.TempDir()

	files, err := archive.New().Unzip(context.Background(), src, dest, ports.ExtractOptions{
		SkipFirstComponent: true,
		DeleteSource:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dest, "plugin.vst3")}, files)
	assert.NoFileExists(t, src)
}

func TestZip_Overwrite(t *testing.T) {
	src := writeZip(t, map[string]string{"a.txt": "new"})
	dest := t.TempDir()
	existing := filepath.Join(dest, "a.txt")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0644))

	files, err := archive.New().Unzip(context.Background(), src, dest, ports.ExtractOptions{})
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, "old", readFile(t, existing))

	files, err = archive.New().Unzip(context.Background(), src, dest, ports.ExtractOptions{Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, []string{existing}, files)
	assert.Equal(t, "new", readFile(t, existing))
}

func TestZip_RejectsTraversal(t *testing.T) {
	src := writeZip(t, map[string]string{"../evil.txt": "x"})
	dest := filepath.Join(t.TempDir(), "out")

	_, err := archive.New().Unzip(context.Background(), src, dest, ports.ExtractOptions{})
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dest), "evil.txt"))
}

func TestZip_Cancelled(t *testing.T) {
	src := writeZip(t, map[string]string{"a.txt": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := archive.New().Unzip(ctx, src, t.TempDir(), ports.ExtractOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestZip_MissingArchive(t *testing.T) {
	_, err := archive.New().Unzip(context.Background(), filepath.Join(t.TempDir(), "none.zip"), t.TempDir(), ports.ExtractOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
