package loki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldbook/backend/internal/telemetry/domain"
)

func captureServer(t *testing.T, status int) (*httptest.Server, *PushRequest) {
	t.Helper()
	got := &PushRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loki/api/v1/push", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient("  ", nil)
	assert.Error(t, err)
}

func TestPushEventJSON_LabelsAndTimestamp(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent)
	c, err := NewClient(srv.URL+"/", nil)
	require.NoError(t, err)

	at := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(domain.NewEvent(domain.EventRefreshReuseDetected, "u1", "s1", at))
	require.NoError(t, err)

	require.NoError(t, c.PushEventJSON(context.Background(), raw))
	require.Len(t, got.Streams, 1)
	s := got.Streams[0]
	assert.Equal(t, "fieldbook-auth", s.Stream["job"])
	assert.Equal(t, "refresh_reuse_detected", s.Stream["event_type"])
	assert.Equal(t, "auth-service", s.Stream["source"])
	require.Len(t, s.Values, 1)
	assert.Equal(t, strconv.FormatInt(at.UnixNano(), 10), s.Values[0][0])
	assert.Equal(t, string(raw), s.Values[0][1])
}

func TestPushEventJSON_UndecodablePayload(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent)
	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	require.NoError(t, c.PushEventJSON(context.Background(), []byte("not json")))
	s := got.Streams[0]
	assert.Equal(t, map[string]string{"job": "fieldbook-auth"}, s.Stream)
	assert.Equal(t, "not json", s.Values[0][1])
}

func TestPush_SanitizesLabels(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent)
	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	require.NoError(t, c.Push(context.Background(), time.Now(), "line", map[string]string{"source": "auth service/v1", "blank": "  "}))
	assert.Equal(t, "auth_service_v1", got.Streams[0].Stream["source"])
	_, ok := got.Streams[0].Stream["blank"]
	assert.False(t, ok)
}

func TestPush_Non2xxIsError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusBadRequest)
	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	err = c.Push(context.Background(), time.Now(), "line", nil)
	assert.ErrorContains(t, err, "400")
}
