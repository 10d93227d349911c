package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"uedump/facade"
	"uedump/process"
	"uedump/process_blob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer() *Server {
	core := facade.NewCore(
		func() process.Process { return process_blob.NewProcessImage(1) },
		func() ([]process.ProcessInfo, error) {
			return []process.ProcessInfo{{PID: 7, Name: "Game.exe"}}, nil
		},
	)
	return New("127.0.0.1:0", core)
}

func TestProcessesEndpoint(t *testing.T) {
	s := testServer()
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/processes", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var procs []process.ProcessInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &procs))
	require.Len(t, procs, 1)
	assert.Equal(t, "Game.exe", procs[0].Name)
}

// Commands without a live target report the conflict status.
func TestNotAttachedStatus(t *testing.T) {
	s := testServer()

	for _, path := range []string{"/api/packages", "/api/base-addresses", "/api/version"} {
		rec := httptest.NewRecorder()
		s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusConflict, rec.Code, path)
	}
}

func TestBadRequests(t *testing.T) {
	s := testServer()

	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/fname/zz", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/array-elements?count=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsEndpointDrains(t *testing.T) {
	s := testServer()

	// No events published: the drain returns an empty list once the
	// request context is cancelled.
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req.WithContext(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)
}
