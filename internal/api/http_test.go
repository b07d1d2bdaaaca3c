package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jbride/mujina/internal/backplane"
	"github.com/jbride/mujina/internal/board"
	"github.com/jbride/mujina/internal/status"
)

func newTestSink(t *testing.T) *status.Sink {
	t.Helper()
	registry := board.NewRegistry()
	registry.Register(board.Descriptor{Name: "cpu", New: board.NewCPUBoard})

	bp := backplane.New(registry, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go bp.Run(ctx)

	bp.NotifyAttach("/dev/fake0", 0, 0)
	sink := status.NewSink(bp)

	require.Eventually(t, func() bool {
		_, ok := sink.Boards()["/dev/fake0"]
		return ok
	}, time.Second, 10*time.Millisecond)

	return sink
}

func TestHandleHealthReportsBoardsAndUptime(t *testing.T) {
	sink := newTestSink(t)
	srv := NewServer("127.0.0.1:0", sink)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil)
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Boards, 1)
	require.Equal(t, "healthy", resp.Boards[0].State)
}

func TestHandleBoardsListsTrackedBoards(t *testing.T) {
	sink := newTestSink(t)
	srv := NewServer("127.0.0.1:0", sink)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/boards", nil)
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Boards []boardDTO `json:"boards"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Boards, 1)
	require.Equal(t, "/dev/fake0", body.Boards[0].DevicePath)
}

func TestHandleReinitializeAcknowledgesRequest(t *testing.T) {
	sink := newTestSink(t)
	srv := NewServer("127.0.0.1:0", sink)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/boards/%2Fdev%2Ffake0/reinitialize", nil)
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
}
