package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	path string
	body map[string]any
}

func newRemoteServer(t *testing.T, status int, reply string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()

	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{path: r.URL.Path}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.body)
		}
		seen = append(seen, rec)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)

	return srv, &seen
}

func runCommand(t *testing.T, args ...string) error {
	t.Helper()

	log = logrus.New()
	log.SetOutput(io.Discard)
	t.Cleanup(func() { serverURL = "" })

	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestPostRemote(t *testing.T) {
	srv, seen := newRemoteServer(t, http.StatusOK, `{"summaries":3}`)

	out, err := postRemote(context.Background(), srv.URL+"/", "/api/aggregate", map[string]string{"date": "2024-05-01"})
	require.NoError(t, err)
	assert.Equal(t, float64(3), out["summaries"])

	require.Len(t, *seen, 1)
	assert.Equal(t, "/api/aggregate", (*seen)[0].path)
	assert.Equal(t, "2024-05-01", (*seen)[0].body["date"])
}

func TestPostRemote_ErrorStatus(t *testing.T) {
	srv, _ := newRemoteServer(t, http.StatusBadRequest, `{"error":"bad date"}`)

	_, err := postRemote(context.Background(), srv.URL, "/api/aggregate", map[string]string{"date": "nope"})
	assert.ErrorContains(t, err, "status 400")
	assert.ErrorContains(t, err, "bad date")
}

func TestRebuildCmd_UsesServer(t *testing.T) {
	srv, seen := newRemoteServer(t, http.StatusOK, `{"details":4,"summaries":2,"elapsedMs":7}`)

	require.NoError(t, runCommand(t, "rebuild", "--server", srv.URL))
	require.Len(t, *seen, 1)
	assert.Equal(t, "/api/rebuild", (*seen)[0].path)
	assert.Nil(t, (*seen)[0].body)
}

func TestAggregateCmd_UsesServer(t *testing.T) {
	srv, seen := newRemoteServer(t, http.StatusOK, `{"summaries":1}`)

	require.NoError(t, runCommand(t, "aggregate", "2024-05-01", "--server", srv.URL))
	require.Len(t, *seen, 1)
	assert.Equal(t, "/api/aggregate", (*seen)[0].path)
	assert.Equal(t, "2024-05-01", (*seen)[0].body["date"])
}

func TestRebuildCmd_DocumentsExclusivity(t *testing.T) {
	assert.Contains(t, rebuildCmd.Long, `"serve" is stopped`)
	assert.Contains(t, aggregateCmd.Long, "--server")
}
