package tui

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/multipage/pkg/domain"
)

func sampleView() domain.PageView {
	return domain.PageView{
		PageID: "options",
		Title:  "Install options",
		Index:  1,
		Total:  4,
		Status: domain.StatusActive,
		Elements: []domain.ElementView{
			{ID: "intro", Type: domain.ElementText, Props: domain.TextProps{Text: "Pick what to install."}},
			{ID: "root", Type: domain.ElementInput, Required: true, Props: domain.InputProps{Label: "Folder"}, Value: "/opt/w"},
			{ID: "clean", Type: domain.ElementButton, Props: domain.ButtonProps{Label: "Clean install", Toggle: true}, Value: true},
			{ID: "formats", Type: domain.ElementTagList, Props: domain.TagListProps{Options: []string{"VST3", "AU"}, Multiple: true}, Value: []any{"VST3", "AU"}},
			{ID: "fetch-status", Type: domain.ElementTask, Props: domain.TaskProps{TaskID: "fetch"}, TaskStatus: domain.TaskPending},
			{ID: "prefs", Type: domain.ElementSettings, Props: domain.SettingsProps{Keys: []string{"root", "theme"}}, Value: map[string]any{"root": "/opt/w"}},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleView())

	assert.Contains(t, md, "# Install options\n")
	assert.Contains(t, md, "_Page 2 of 4_")
	assert.Contains(t, md, "Pick what to install.")
	assert.Contains(t, md, "- **Folder** * `root`: /opt/w")
	assert.Contains(t, md, "- [x] **Clean install** `clean`")
	assert.Contains(t, md, "(VST3, AU): VST3, AU")
	assert.Contains(t, md, "- fetch: _pending_")
	assert.Contains(t, md, "- theme = _(empty)_")
	assert.NotContains(t, md, "Finished")
}

func TestMarkdown_FallbacksAndStatus(t *testing.T) {
	md := Markdown(domain.PageView{
		PageID: "done",
		Total:  1,
		Status: domain.StatusFinished,
		Elements: []domain.ElementView{
			{ID: "name", Type: domain.ElementInput, Props: domain.InputProps{}},
		},
	})
	assert.Contains(t, md, "# done\n")
	assert.Contains(t, md, "- **name** `name`: _(empty)_")
	assert.Contains(t, md, "**Finished.**")
}

func TestRenderer_PlainText(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, WithPlainText())
	require.NoError(t, r.Render(context.Background(), sampleView()))
	assert.Equal(t, Markdown(sampleView()), buf.String())
}

func TestRenderer_Styled(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, WithWordWrap(100))
	require.NoError(t, r.Render(context.Background(), sampleView()))
	assert.Contains(t, buf.String(), "options")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|_|")
}
