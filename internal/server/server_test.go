package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/blockworld/pkg/cache"
	"github.com/matzehuels/blockworld/pkg/pipeline"
	"github.com/matzehuels/blockworld/pkg/txdata"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "840000.txt"), []byte("50\n3000000\n999999999\n"), 0o644))

	logger := log.New(io.Discard)
	runner := pipeline.NewRunner(cache.NewMemoryCache(), nil, txdata.FileSource{Path: filepath.Join(dir, "{height}.txt")}, logger)
	s := New(runner, nil, logger)
	s.Defaults = pipeline.Options{AnimChance: -1}

	srv := httptest.NewServer(s.Routes())
	t.Cleanup(func() {
		s.Hub.Close()
		srv.Close()
	})
	return srv
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"ok"`)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestMarkup(t *testing.T) {
	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/blocks/840000/markup?seed=abc")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "abc", resp.Header.Get("X-Block-Seed"))
	assert.True(t, strings.HasPrefix(body, "<m-group>"))
	assert.Equal(t, 3, strings.Count(body, "<m-cube"))

	_, again := get(t, srv.URL+"/blocks/840000/markup?seed=abc")
	assert.Equal(t, body, again)
}

func TestStats(t *testing.T) {
	srv := newTestServer(t)
	get(t, srv.URL+"/blocks/840000/stats?seed=s")
	resp, body := get(t, srv.URL+"/blocks/840000/stats?seed=s")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st statsReply
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	assert.Equal(t, int64(840000), st.Height)
	assert.Equal(t, 3, st.TxCount)
	assert.Equal(t, 5, st.Width)
	assert.Equal(t, map[string]int{"1": 1, "2": 1, "4": 1}, st.Counts)
	assert.Equal(t, cacheReply{Fetch: true, Pack: true, Markup: true}, st.Cache)
}

func TestScene(t *testing.T) {
	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/blocks/840000/scene")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sc struct {
		Nodes int `json:"nodes"`
		Root  struct {
			Kind     string `json:"kind"`
			Children []struct {
				Kind string `json:"kind"`
			} `json:"children"`
		} `json:"root"`
		Bounds struct {
			Empty bool `json:"empty"`
		} `json:"bounds"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &sc))
	assert.Equal(t, 4, sc.Nodes)
	assert.Equal(t, "group", sc.Root.Kind)
	require.Len(t, sc.Root.Children, 3)
	assert.Equal(t, "cube", sc.Root.Children[0].Kind)
	assert.False(t, sc.Bounds.Empty)
}

func TestTreeSVG(t *testing.T) {
	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/blocks/840000/tree.svg")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "<svg")
}

func TestErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/blocks/abc/markup", http.StatusBadRequest},
		{"/blocks/-1/markup", http.StatusBadRequest},
		{"/blocks/7/markup", http.StatusNotFound},
		{"/blocks/840000/markup?color=orange", http.StatusBadRequest},
		{"/blocks/840000/markup?scale=x", http.StatusBadRequest},
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, srv.URL+tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, body, `"error"`)
		})
	}
}

func TestCORS(t *testing.T) {
	dir := t.TempDir()
	runner := pipeline.NewRunner(nil, nil, txdata.FileSource{Path: filepath.Join(dir, "{height}")}, log.New(io.Discard))
	s := New(runner, nil, log.New(io.Discard))
	s.AllowOrigins = []string{"https://blocks.example"}
	h := s.Routes()

	for origin, want := range map[string]string{
		"https://blocks.example": "https://blocks.example",
		"https://evil.example":   "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Header().Get("Access-Control-Allow-Origin"), origin)
	}
}
