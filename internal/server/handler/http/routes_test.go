package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/TagLock/internal/gateway"
	"github.com/atinyakov/TagLock/internal/models"
	"github.com/atinyakov/TagLock/internal/persist"
	handler "github.com/atinyakov/TagLock/internal/server/handler/http"
	"github.com/atinyakov/TagLock/internal/service"
	"github.com/atinyakov/TagLock/internal/storage"
)

func newServer(t *testing.T, requireClientCert bool) *httptest.Server {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "taglock.json"))
	require.NoError(t, err)
	w := persist.NewWriter(zap.NewNop())
	t.Cleanup(w.Close)

	ctrl := service.NewController(service.Config{
		Store:   store,
		Writer:  w,
		Gateway: gateway.NewLog(zap.NewNop()),
		Logger:  zap.NewNop(),
	})
	require.NoError(t, ctrl.Load(context.Background()))

	router := handler.NewRouter(
		&handler.ProfileHandler{ProfileService: ctrl},
		&handler.LockHandler{LockService: ctrl, Log: zap.NewNop()},
		zap.NewNop(),
		requireClientCert,
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_LockFlow(t *testing.T) {
	srv := newServer(t, false)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/profiles", map[string]any{"name": "Evening", "selection": []byte{4, 2}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var p models.Profile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/profiles/"+p.ID.String()+"/payload", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var payload struct {
		Payload []byte `json:"payload"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.NotEmpty(t, payload.Payload)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/scan", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/status", nil)
	var st models.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.True(t, st.Locked)
	assert.Equal(t, "Evening", st.ProfileName)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/profiles/"+p.ID.String(), map[string]any{"name": "x"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/profiles", map[string]any{"ids": []string{p.ID.String()}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/emergency-unlock", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.False(t, st.Locked)
	assert.Equal(t, models.DefaultEmergencyUnlocks-1, st.EmergencyUnlocksRemaining)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/emergency-unlock", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/scan/tag", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRouter_RejectsNonJSONBody(t *testing.T) {
	srv := newServer(t, false)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/profiles", bytes.NewBufferString("name=x"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestRouter_ClientCertRequired(t *testing.T) {
	srv := newServer(t, true)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/status", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/profiles", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
