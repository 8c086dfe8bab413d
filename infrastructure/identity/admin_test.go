package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "uerp-backend/pkg/errors"
)

func adminServer(t *testing.T, grants *atomic.Int32, realms map[string]bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/master/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "root" || r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		grants.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "admin-tok", "expires_in": 300})
	})
	mux.HandleFunc("/admin/realms/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer admin-tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		name := r.URL.Path[len("/admin/realms/"):]
		if !realms[name] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/admin/realms", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		realms[payload["realm"].(string)] = true
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/realms/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"issuer": "test"})
	})
	return httptest.NewServer(mux)
}

func TestAdminTokenIsCached(t *testing.T) {
	var grants atomic.Int32
	server := adminServer(t, &grants, map[string]bool{})
	defer server.Close()

	c := New(zap.NewNop(), Config{BaseURL: server.URL, AdminUsername: "root", AdminPassword: "secret"})

	first, err := c.AdminToken(context.Background())
	require.NoError(t, err)
	second, err := c.AdminToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "admin-tok", first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), grants.Load())
}

func TestAdminTokenRefreshesWhenStale(t *testing.T) {
	var grants atomic.Int32
	server := adminServer(t, &grants, map[string]bool{})
	defer server.Close()

	c := New(zap.NewNop(), Config{BaseURL: server.URL, AdminUsername: "root", AdminPassword: "secret"})

	_, err := c.AdminToken(context.Background())
	require.NoError(t, err)

	// Force the cached token past its lifetime.
	c.adminMu.Lock()
	c.adminExpiry = c.adminExpiry.AddDate(-1, 0, 0)
	c.adminMu.Unlock()

	_, err = c.AdminToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), grants.Load())
}

func TestAdminTokenRejectionIsUnauthorized(t *testing.T) {
	var grants atomic.Int32
	server := adminServer(t, &grants, map[string]bool{})
	defer server.Close()

	c := New(zap.NewNop(), Config{BaseURL: server.URL, AdminUsername: "root", AdminPassword: "wrong"})

	_, err := c.AdminToken(context.Background())
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestEnsureRealmCreatesMissingRealm(t *testing.T) {
	var grants atomic.Int32
	realms := map[string]bool{"present": true}
	server := adminServer(t, &grants, realms)
	defer server.Close()

	c := New(zap.NewNop(), Config{BaseURL: server.URL, AdminUsername: "root", AdminPassword: "secret"})

	require.NoError(t, c.EnsureRealm(context.Background(), "present"))
	assert.True(t, realms["present"])

	require.NoError(t, c.EnsureRealm(context.Background(), "fresh"))
	assert.True(t, realms["fresh"])
}

func TestConnectBootstrapsDefaultRealm(t *testing.T) {
	var grants atomic.Int32
	realms := map[string]bool{}
	server := adminServer(t, &grants, realms)
	defer server.Close()

	c := New(zap.NewNop(), Config{
		BaseURL: server.URL, DefaultRealm: "acme",
		AdminUsername: "root", AdminPassword: "secret",
	})

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, realms["acme"])
}
