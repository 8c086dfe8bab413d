package reference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"uerp-backend/application/registry"
	"uerp-backend/domain/schema"
	apperrors "uerp-backend/pkg/errors"
)

type Device struct {
	schema.Base
	Name string `json:"name" uerp:"keyword"`
}

func TestResolveFetchesRemoteEntity(t *testing.T) {
	var gotAuth, gotOrg, gotPath string
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotOrg = r.Header.Get("Organization")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"id":   "d1",
			"sref": "fleet.device.Device",
			"name": "edge-01",
		})
	}))
	defer remote.Close()

	reg := registry.New(zap.NewNop(), "uerp", 1, nil, nil, nil)
	info, err := reg.RegisterRemote(&Device{}, "fleet.device", schema.Config{CRUD: schema.Read}, remote.URL, "fleet")
	require.NoError(t, err)

	resolver := New(zap.NewNop(), reg, nil)
	ref := schema.Reference{ID: "d1", SRef: info.SRef, URef: info.Path + "/d1"}

	model, err := resolver.Resolve(context.Background(), ref, Credentials{Token: "tok", Realm: "acme"})
	require.NoError(t, err)

	device, ok := model.(*Device)
	require.True(t, ok)
	assert.Equal(t, "edge-01", device.Name)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "acme", gotOrg)
	assert.Equal(t, info.Path+"/d1", gotPath)
}

func TestResolveUnknownSRefIsBadRequest(t *testing.T) {
	reg := registry.New(zap.NewNop(), "uerp", 1, nil, nil, nil)
	resolver := New(zap.NewNop(), reg, nil)

	_, err := resolver.Resolve(context.Background(), schema.Reference{SRef: "no.such.Thing"}, Credentials{})
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestResolveWithoutReadIsMethodNotAllowed(t *testing.T) {
	reg := registry.New(zap.NewNop(), "uerp", 1, nil, nil, nil)
	info, err := reg.RegisterRemote(&Device{}, "fleet.device", schema.Config{CRUD: schema.Create}, "http://fleet:8080", "fleet")
	require.NoError(t, err)

	resolver := New(zap.NewNop(), reg, nil)
	_, err = resolver.Resolve(context.Background(), schema.Reference{SRef: info.SRef}, Credentials{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindMethodNotAllowed))
}

func TestResolveRemoteNotFound(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	}))
	defer remote.Close()

	reg := registry.New(zap.NewNop(), "uerp", 1, nil, nil, nil)
	info, err := reg.RegisterRemote(&Device{}, "fleet.device", schema.Config{CRUD: schema.Read}, remote.URL, "fleet")
	require.NoError(t, err)

	resolver := New(zap.NewNop(), reg, nil)
	_, err = resolver.Resolve(context.Background(), schema.Reference{SRef: info.SRef, URef: info.Path + "/x"}, Credentials{})
	assert.True(t, apperrors.IsNotFound(err))
}
