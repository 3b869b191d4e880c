package http_handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthanhphan/go-distributed-cache/internal/cacheserver/adapter/outbound/memstore"
	"github.com/anthanhphan/go-distributed-cache/internal/cacheserver/config"
)

func do(t *testing.T, s *Server, method, target, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	resp, err := s.app.Test(httptest.NewRequest(method, target, reader), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestServer_KeyLifecycle(t *testing.T) {
	store := memstore.New()
	s := NewServer(config.ServerConfig{}, store)

	status, _ := do(t, s, http.MethodGet, "/session%3A1", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, s, http.MethodPut, "/session%3A1", "payload")
	assert.Equal(t, http.StatusOK, status)

	status, _ = do(t, s, http.MethodPost, "/a%2Fb", "other")
	assert.Equal(t, http.StatusOK, status)

	v, ok := store.Get("a/b")
	require.True(t, ok)
	assert.Equal(t, "other", string(v))

	status, body := do(t, s, http.MethodGet, "/session%3A1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "payload", body)

	status, _ = do(t, s, http.MethodDelete, "/session%3A1", "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = do(t, s, http.MethodDelete, "/session%3A1", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = do(t, s, http.MethodGet, "/session%3A1", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_RejectsEmptyKeyAndBody(t *testing.T) {
	s := NewServer(config.ServerConfig{}, memstore.New())

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		status, _ := do(t, s, method, "/", "x")
		assert.Equal(t, http.StatusBadRequest, status, method)
	}

	status, _ := do(t, s, http.MethodPut, "/k", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_KeysAreCaseSensitive(t *testing.T) {
	store := memstore.New()
	s := NewServer(config.ServerConfig{}, store)

	do(t, s, http.MethodPut, "/Key", "upper")
	status, _ := do(t, s, http.MethodGet, "/key", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 1, store.Len())
}
