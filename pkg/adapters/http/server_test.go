package http

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/trajview"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/observability"
	"github.com/aretw0/trajview/pkg/ports"
	"github.com/aretw0/trajview/pkg/viewer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, opts ...trajview.Option) *trajview.Engine {
	t.Helper()
	sf := ports.StructureFetcherFunc(func(ctx context.Context, subject domain.Subject, opts ports.StructureOptions) ([]byte, error) {
		return []byte(">atom list " + string(subject)), nil
	})
	tf := ports.TrajectoryFetcherFunc(func(ctx context.Context, subject domain.Subject, opts ports.TrajectoryOptions) ([]byte, error) {
		if subject == "broken" {
			return nil, &domain.FetchError{Op: "trajectory", Subject: subject, StatusCode: 502, Err: io.ErrUnexpectedEOF}
		}
		return []byte{0xca, 0xfe}, nil
	})
	eng, err := trajview.New(sf, tf, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) viewer.Snapshot {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var snap viewer.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	return snap
}

func waitKind(t *testing.T, h http.Handler, session string, kind domain.SourceKind) viewer.Snapshot {
	t.Helper()
	var snap viewer.Snapshot
	require.Eventually(t, func() bool {
		snap = decodeSnapshot(t, do(t, h, http.MethodGet, "/sessions/"+session, ""))
		return snap.Source.Kind == kind
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestGetSwagger_IsValid(t *testing.T) {
	doc, err := GetSwagger()
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", doc.Info.Version)
	assert.NotNil(t, doc.Paths.Find("/sessions/{session}/trajectory"))
}

func TestServer_HealthInfoAndAPIDocument(t *testing.T) {
	h := NewHandler(newEngine(t))

	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/info", "")
	var info map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, "trajview-http", info["app"])
	assert.Equal(t, "1.0.0", info["api_version"])
	assert.Equal(t, strings.TrimSpace(trajview.Version), info["version"])

	w = do(t, h, http.MethodGet, "/openapi.yaml", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, h, http.MethodOptions, "/sessions", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_SessionLifecycle(t *testing.T) {
	h := NewHandler(newEngine(t))

	w := do(t, h, http.MethodPut, "/sessions/tab-1/subject", `{"subject":"P1"}`)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, "tab-1", snap.SessionID)
	assert.Equal(t, domain.Subject("P1"), snap.Subject)

	snap = waitKind(t, h, "tab-1", domain.SourceStructure)
	assert.Equal(t, ">atom list P1", snap.Source.Structure.Data)

	w = do(t, h, http.MethodGet, "/sessions/tab-1/coordinates", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPut, "/sessions/tab-1/trajectory", `{"frame_range":"0-100","selection":"protein"}`)
	snap = decodeSnapshot(t, w)
	require.NotNil(t, snap.Request)
	assert.Equal(t, "protein", snap.Request.Selection)

	snap = waitKind(t, h, "tab-1", domain.SourceTrajectory)
	assert.Equal(t, 2, snap.Source.Coordinates.Size)

	w = do(t, h, http.MethodGet, "/sessions/tab-1/coordinates", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte{0xca, 0xfe}, w.Body.Bytes())
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))

	w = do(t, h, http.MethodGet, "/sessions/tab-1/model", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ">atom list P1", w.Body.String())

	w = do(t, h, http.MethodGet, "/sessions", "")
	assert.JSONEq(t, `{"sessions":["tab-1"]}`, w.Body.String())

	w = do(t, h, http.MethodDelete, "/sessions/tab-1/trajectory", "")
	snap = decodeSnapshot(t, w)
	assert.Nil(t, snap.Request)
	assert.Equal(t, domain.SourceStructure, snap.Source.Kind)

	w = do(t, h, http.MethodDelete, "/sessions/tab-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, http.MethodDelete, "/sessions/tab-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_ErrorMapping(t *testing.T) {
	eng := newEngine(t)
	h := NewHandler(eng)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/sessions/ghost", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/sessions/tab-1/subject", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/sessions/tab-1/subject", `not json`).Code)

	eng.Session("empty")
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPut, "/sessions/empty/trajectory", `{}`).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/sessions/empty/retry", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/sessions/empty/retry?target=everything", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/sessions/empty/surface", `{"status":"on fire"}`).Code)
}

func TestServer_TrajectoryFailureAndSurfaceReport(t *testing.T) {
	h := NewHandler(newEngine(t))

	decodeSnapshot(t, do(t, h, http.MethodPut, "/sessions/tab-1/subject", `{"subject":"broken"}`))
	decodeSnapshot(t, do(t, h, http.MethodPut, "/sessions/tab-1/trajectory", `{"frame_range":"0-100"}`))

	var snap viewer.Snapshot
	require.Eventually(t, func() bool {
		snap = decodeSnapshot(t, do(t, h, http.MethodGet, "/sessions/tab-1", ""))
		return snap.Status.Status == domain.StatusError
	}, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, snap.Status.Message, "status 502")
	assert.Equal(t, domain.SourceStructure, snap.Source.Kind)

	snap = decodeSnapshot(t, do(t, h, http.MethodPost, "/sessions/tab-1/retry?target=structure", ""))
	assert.Equal(t, domain.Subject("broken"), snap.Subject)

	snap = decodeSnapshot(t, do(t, h, http.MethodPost, "/sessions/tab-1/surface", `{"status":"error","message":"WebGL context lost"}`))
	assert.Equal(t, domain.ViewerStatus{Status: domain.StatusError, Message: "WebGL context lost"}, snap.Status)
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	h := NewHandler(newEngine(t, trajview.WithHooks(metrics.Hooks())), WithMetrics(reg), WithCORSOrigin(""))

	decodeSnapshot(t, do(t, h, http.MethodPut, "/sessions/tab-1/subject", `{"subject":"P1"}`))
	waitKind(t, h, "tab-1", domain.SourceStructure)

	var w *httptest.ResponseRecorder
	require.Eventually(t, func() bool {
		w = do(t, h, http.MethodGet, "/metrics", "")
		return strings.Contains(w.Body.String(), `trajview_fetches_total{cache="structure",outcome="ok"} 1`)
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSubscribeEvents_StreamsSnapshots(t *testing.T) {
	eng := newEngine(t)
	srv := httptest.NewServer(NewHandler(eng))
	defer srv.Close()

	sess := eng.Session("tab-1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/tab-1/events?watch=source", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.NoError(t, sess.SetSubject(context.Background(), "P1"))

	events := make(chan viewer.Snapshot, 8)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: {") {
				continue
			}
			var snap viewer.Snapshot
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap) == nil {
				events <- snap
			}
		}
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-events:
			require.True(t, ok, "stream closed early")
			if snap.Source.Kind == domain.SourceStructure {
				assert.Equal(t, ">atom list P1", snap.Source.Structure.Data)
				return
			}
		case <-deadline:
			t.Fatal("no structure snapshot streamed")
		}
	}
}

func TestParseWatch(t *testing.T) {
	raw := " source, status ,,"
	f := parseWatch(&raw)
	assert.Equal(t, watchFilter{"source": true, "status": true}, f)

	prev := viewer.Snapshot{Status: domain.Idle(), Source: domain.NoSource()}
	next := prev
	next.StructureLoading = true
	assert.False(t, f.changed(prev, next))
	assert.True(t, parseWatch(nil).changed(prev, next))
}
