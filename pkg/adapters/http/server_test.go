package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/multipage/internal/runtime"
	mphttp "github.com/aretw0/multipage/pkg/adapters/http"
	"github.com/aretw0/multipage/pkg/adapters/memory"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/graph"
	"github.com/aretw0/multipage/pkg/monolith"
	"github.com/aretw0/multipage/pkg/observability"
	"github.com/aretw0/multipage/pkg/session"
)

func newTestServer(t *testing.T, opts ...mphttp.Option) (*httptest.Server, *session.Manager) {
	t.Helper()
	g := graph.MustNew(
		domain.Page{ID: "name", Title: "Who are you?", Elements: []domain.Element{{
			ID: "name", Type: domain.ElementInput, BoundKey: "name", Required: true, Props: domain.InputProps{Label: "Name"},
		}}},
		domain.Page{ID: "hello", Elements: []domain.Element{{
			ID: "greeting", Type: domain.ElementText, Props: domain.TextProps{Text: "Hello $name"},
		}}},
		domain.Page{ID: "done", Kind: domain.PageTerminal},
	)
	mgr := session.NewManager(memory.NewStore(), func(id string) *runtime.Controller {
		return runtime.New(g, runtime.WithSessionID(id))
	})
	srv := httptest.NewServer(mphttp.NewHandler(mgr, opts...))
	t.Cleanup(srv.Close)
	return srv, mgr
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeView(t *testing.T, resp *http.Response) domain.PageView {
	t.Helper()
	var raw struct {
		PageID string        `json:"page_id"`
		Title  string        `json:"title"`
		Status string        `json:"status"`
		Elems  []struct {
			ID    string `json:"id"`
			Value any    `json:"value"`
		} `json:"elements"`
		History []string `json:"history"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	v := domain.PageView{PageID: raw.PageID, Title: raw.Title, Status: domain.SessionStatus(raw.Status), History: raw.History}
	for _, e := range raw.Elems {
		v.Elements = append(v.Elements, domain.ElementView{ID: e.ID, Value: e.Value})
	}
	return v
}

func TestServer_Walkthrough(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/sessions", mphttp.OpenRequest{SessionID: "s1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/sessions/s1", resp.Header.Get("Location"))
	view := decodeView(t, resp)
	assert.Equal(t, "name", view.PageID)
	assert.Equal(t, "Who are you?", view.Title)

	resp = do(t, http.MethodPost, srv.URL+"/sessions/s1/advance", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var refusal mphttp.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&refusal))
	assert.Equal(t, "name", refusal.PageID)
	require.Len(t, refusal.Failures, 1)
	assert.Equal(t, domain.ReasonEmpty, refusal.Failures[0].Reason)

	resp = do(t, http.MethodPost, srv.URL+"/sessions/s1/values", mphttp.ValueRequest{ElementID: "name", Value: "Ada"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/sessions/s1/advance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decodeView(t, resp)
	assert.Equal(t, "hello", view.PageID)
	require.Len(t, view.Elements, 1)
	assert.Equal(t, domain.ElementView{ID: "greeting"}, view.Elements[0])

	resp = do(t, http.MethodPost, srv.URL+"/sessions/s1/back", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decodeView(t, resp)
	assert.Equal(t, "name", view.PageID)
	assert.Equal(t, "Ada", view.Elements[0].Value, "back re-renders stored values")

	resp = do(t, http.MethodPost, srv.URL+"/sessions/s1/jump", mphttp.JumpRequest{PageID: "done"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, http.MethodPost, srv.URL+"/sessions/s1/advance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.StatusFinished, decodeView(t, resp).Status)

	resp = do(t, http.MethodPost, srv.URL+"/sessions/s1/advance", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServer_Errors(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := strings.TrimPrefix(resp.Header.Get("Location"), "/sessions/")
	require.NotEmpty(t, id)

	resp = do(t, http.MethodPost, srv.URL+"/sessions/"+id+"/values", mphttp.ValueRequest{ElementID: "nope", Value: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/sessions/"+id+"/values", mphttp.ValueRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/sessions/"+id+"/back", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/sessions/"+id+"/jump", mphttp.JumpRequest{PageID: "ghost"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ListDeleteAndSnapshot(t *testing.T) {
	srv, mgr := newTestServer(t)
	ctx := context.Background()

	_, err := mgr.Open(ctx, "a")
	require.NoError(t, err)
	_, err = mgr.Open(ctx, "b")
	require.NoError(t, err)

	resp := do(t, http.MethodGet, srv.URL+"/sessions", nil)
	var list map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.ElementsMatch(t, []string{"a", "b"}, list["sessions"])

	snap := domain.Snapshot{Current: "hello", History: []string{"name", "hello"}, Values: map[string]any{"name": "Grace"}}
	resp = do(t, http.MethodPut, srv.URL+"/sessions/b/snapshot", snap)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", decodeView(t, resp).PageID)

	resp = do(t, http.MethodGet, srv.URL+"/sessions/b/snapshot", nil)
	var got domain.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "Grace", got.Values["name"])
	assert.Equal(t, "b", got.SessionID)

	resp = do(t, http.MethodDelete, srv.URL+"/sessions/a", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, http.MethodGet, srv.URL+"/sessions/a", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Export(t *testing.T) {
	srv, mgr := newTestServer(t)
	_, err := mgr.Open(context.Background(), "exp")
	require.NoError(t, err)

	resp := do(t, http.MethodGet, srv.URL+"/sessions/exp/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	m, err := monolith.Import(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "name", m.Snapshot.Current)
	assert.Equal(t, 3, m.Graph.Len())
	assert.Equal(t, "exp", m.Meta.Name)
}

func TestServer_InfoHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.NewMetrics(observability.WithRegisterer(reg))
	srv, _ := newTestServer(t,
		mphttp.WithInfo("wizard", "1.2.3\n"),
		mphttp.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	)

	resp := do(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/info", nil)
	var info map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, map[string]string{"app": "wizard", "version": "1.2.3"}, info)

	resp = do(t, http.MethodGet, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_SubscribeEvents(t *testing.T) {
	srv, mgr := newTestServer(t)
	_, err := mgr.Open(context.Background(), "live")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?session_id=live&watch=values", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	lines := bufio.NewScanner(stream.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	// Advancing is refused and changes nothing, so the first data line is the value.
	do(t, http.MethodPost, srv.URL+"/sessions/live/advance", nil)
	do(t, http.MethodPost, srv.URL+"/sessions/live/values", mphttp.ValueRequest{ElementID: "name", Value: "Ada"})

	for lines.Scan() {
		line := lines.Text()
		if !strings.HasPrefix(line, "data: {") {
			continue
		}
		var diff domain.SnapshotDiff
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &diff))
		assert.Equal(t, "Ada", diff.Values["name"])
		return
	}
	t.Fatal("no diff received")
}

func TestServer_EventsRequireSession(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/events", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, mphttp.StatusOf(assert.AnError))
	assert.Equal(t, http.StatusConflict, mphttp.StatusOf(&domain.ResolutionError{PageID: "b"}))
	assert.Equal(t, http.StatusBadRequest, mphttp.StatusOf(&domain.SerializationError{Stage: "header", Err: assert.AnError}))
	assert.Equal(t, http.StatusUnprocessableEntity, mphttp.StatusOf(fmt.Errorf("advance: %w", &domain.ValidationError{PageID: "p"})))
	assert.Equal(t, http.StatusConflict, mphttp.StatusOf(domain.ErrNoHistory))
	assert.Equal(t, http.StatusNotFound, mphttp.StatusOf(fmt.Errorf("load: %w", domain.ErrSessionNotFound)))
	assert.Equal(t, http.StatusBadRequest, mphttp.StatusOf(errors.Join(domain.ErrInvalidValue, nil)))
}
