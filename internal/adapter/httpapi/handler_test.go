package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/input"
	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
	"github.com/microsoft/DeepVideoDiscovery/internal/infrastructure/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	output.SegmentStore
	id string
}

func (s fakeStore) VideoID() string { return s.id }

type fakeRunner struct {
	mu   sync.Mutex
	reqs []input.SessionRequest
	err  error
}

func (r *fakeRunner) Run(ctx context.Context, req input.SessionRequest) (*entity.SessionResult, error) {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return &entity.SessionResult{
		SessionID: "5f1c7c1e-8f3e-4a58-9d0e-3f0f3c1b2a10",
		VideoID:   req.Store.VideoID(),
		Question:  req.Question,
		Answer:    "Three animals.",
		Citations: []int{1, 2},
		Reason:    entity.ReasonAnswered,
		Confident: true,
	}, nil
}

type fakeArchive struct {
	results map[string]entity.SessionResult
}

func (a *fakeArchive) Save(ctx context.Context, r entity.SessionResult) error { return nil }

func (a *fakeArchive) Get(ctx context.Context, id string) (*entity.SessionResult, error) {
	r, ok := a.results[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, entity.ErrNotFound)
	}
	return &r, nil
}

func (a *fakeArchive) Close() error { return nil }

type testServer struct {
	srv    *httptest.Server
	runner *fakeRunner
	opened []string
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	ts := &testServer{runner: &fakeRunner{}}
	if opts.Runner == nil {
		opts.Runner = ts.runner
	}
	if opts.Stores == nil {
		opts.Stores = func(path string) (output.SegmentStore, error) {
			ts.opened = append(ts.opened, path)
			if strings.Contains(path, "missing") {
				return nil, fmt.Errorf("load %s: %w", path, entity.ErrNotFound)
			}
			return fakeStore{id: "pond"}, nil
		}
	}
	opts.Logger = logger.NewNop()
	if opts.DataRoot == "" {
		opts.DataRoot = "/data/videos"
	}
	ts.srv = httptest.NewServer(NewHandler(opts).Routes())
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) post(t *testing.T, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.srv.URL+"/v1/sessions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp, out := ts.post(t, `{"database":"pond","question":"How many animals?","max_iterations":5,"max_duration_seconds":1.5}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Three animals.", out["answer"])
	assert.Equal(t, "answered", out["reason"])
	assert.Equal(t, "pond", out["video_id"])

	require.Len(t, ts.runner.reqs, 1)
	req := ts.runner.reqs[0]
	assert.Equal(t, "How many animals?", req.Question)
	assert.Equal(t, 5, req.Budget.MaxIterations)
	assert.Equal(t, 1500*time.Millisecond, req.Budget.MaxDuration)
	assert.Equal(t, []string{"/data/videos/pond/database.json"}, ts.opened)
}

func TestCreateSession_PathsStayInsideDataRoot(t *testing.T) {
	ts := newTestServer(t, Options{})

	ts.post(t, `{"database":"../../etc/passwd.json","question":"q"}`)
	ts.post(t, `{"database":"/abs/video/database.json","question":"q"}`)

	assert.Equal(t, []string{"/data/videos/etc/passwd.json", "/data/videos/abs/video/database.json"}, ts.opened)
}

func TestCreateSession_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed body", `{"question":`, http.StatusBadRequest},
		{"unknown field", `{"database":"pond","question":"q","model":"x"}`, http.StatusBadRequest},
		{"missing question", `{"database":"pond"}`, http.StatusBadRequest},
		{"missing database", `{"question":"q"}`, http.StatusBadRequest},
		{"unknown video", `{"database":"missing","question":"q"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, Options{})

			resp, out := ts.post(t, tt.body)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, out["error"])
			assert.Empty(t, ts.runner.reqs)
		})
	}
}

func TestCreateSession_RunnerRejectsRequest(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("run: %w", &entity.ValidationError{Field: "question", Reason: "must not be empty"})}
	ts := newTestServer(t, Options{Runner: runner})

	resp, _ := ts.post(t, `{"database":"pond","question":"q"}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSession(t *testing.T) {
	id := "5f1c7c1e-8f3e-4a58-9d0e-3f0f3c1b2a10"
	archive := &fakeArchive{results: map[string]entity.SessionResult{
		id: {SessionID: id, Answer: "Three animals.", Reason: entity.ReasonAnswered},
	}}
	ts := newTestServer(t, Options{Archive: archive})

	resp, err := http.Get(ts.srv.URL + "/v1/sessions/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out entity.SessionResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Three animals.", out.Answer)

	missing, err := http.Get(ts.srv.URL + "/v1/sessions/00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestGetSession_NoArchive(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.srv.URL + "/v1/sessions/abc")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "dvd_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()
	ts := newTestServer(t, Options{Gatherer: reg})

	resp, err := http.Get(ts.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dvd_test_total 1")
}
