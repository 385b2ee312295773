package httpserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/open_voice_gateway/internal/app"
	"github.com/ncecere/open_voice_gateway/internal/auth"
	"github.com/ncecere/open_voice_gateway/internal/config"
)

func newTestServer(t *testing.T, rdb *redis.Client) *Server {
	t.Helper()
	adminAuth, err := auth.NewAdminAuthService(config.AdminAuthConfig{})
	require.NoError(t, err)
	cfg := &config.Config{}
	cfg.Server.BodyLimitMB = 1
	cfg.Audio.MaxUploadMB = 25
	srv, err := New(&app.Container{
		Config:    cfg,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Redis:     rdb,
		AdminAuth: adminAuth,
	})
	require.NoError(t, err)
	return srv
}

func TestHealthzReportsDependencies(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	srv := newTestServer(t, rdb)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "open-voice-gateway", resp.Header.Get("Server"))

	var body struct {
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "ok", body.Checks["redis"]["status"])
	require.NotContains(t, body.Checks, "postgres")

	mr.Close()
	resp, err = srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "degraded", body.Status)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	_, err = New(&app.Container{})
	require.Error(t, err)
}
