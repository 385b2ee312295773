package restclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostJSONSendsHeadersAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/echo", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-Key"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New("test", srv.URL+"/", 0).WithHeader("X-Key", "secret")
	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.PostJSON(context.Background(), "/api/echo", map[string]string{"a": "b"}, &out))
	require.True(t, out.OK)
}

func TestErrorStatusBecomesStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(456)
		_, _ = w.Write([]byte("quota"))
	}))
	defer srv.Close()

	c := New("deepl", srv.URL, 0)
	err := c.GetJSON(context.Background(), "/x", nil)
	require.Error(t, err)
	require.Equal(t, 456, StatusOf(err))
	require.Contains(t, err.Error(), "deepl api error 456: quota")
}
