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

func remoteInfo(t *testing.T, crud schema.CRUD, provider string) *schema.Info {
	t.Helper()
	reg := registry.New(zap.NewNop(), "uerp", 1, nil, nil, nil)
	info, err := reg.RegisterRemote(&Device{}, "fleet.device", schema.Config{CRUD: crud}, provider, "fleet")
	require.NoError(t, err)
	return info
}

func TestAccessorCreateRoundTrips(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	var gotBody map[string]any
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"id": "d1", "sref": "fleet.device.Device", "org": "acme", "name": "edge-01",
		})
	}))
	defer remote.Close()

	info := remoteInfo(t, schema.CRUDAll, remote.URL)
	access := NewAccessor(zap.NewNop(), nil)

	created, err := access.Create(context.Background(), info, &Device{Name: "edge-01"},
		Credentials{Token: "tok", Realm: "acme"})
	require.NoError(t, err)

	device := created.(*Device)
	assert.Equal(t, "d1", device.ID)
	assert.Equal(t, "acme", device.Org)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, info.Path, gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "edge-01", gotBody["name"])
}

func TestAccessorSearchEncodesParams(t *testing.T) {
	var gotQuery string
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode([]map[string]any{{"id": "d1"}})
	}))
	defer remote.Close()

	info := remoteInfo(t, schema.CRUDAll, remote.URL)
	access := NewAccessor(zap.NewNop(), nil)

	docs, err := access.Search(context.Background(), info, SearchParams{
		Filter:  "name:edge",
		OrderBy: "tstamp",
		Order:   "desc",
		Size:    10,
		Skip:    5,
		Archive: true,
	}, Credentials{})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Contains(t, gotQuery, "%24filter=name%3Aedge")
	assert.Contains(t, gotQuery, "%24orderby=tstamp")
	assert.Contains(t, gotQuery, "%24size=10")
	assert.Contains(t, gotQuery, "%24skip=5")
	assert.Contains(t, gotQuery, "%24archive=true")
}

func TestAccessorCountReadsResult(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "/count")
		json.NewEncoder(w).Encode(schema.ModelCount{Result: 42})
	}))
	defer remote.Close()

	info := remoteInfo(t, schema.CRUDAll, remote.URL)
	access := NewAccessor(zap.NewNop(), nil)

	count, err := access.Count(context.Background(), info, SearchParams{}, Credentials{})
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
}

func TestAccessorUpdateRequiresID(t *testing.T) {
	info := remoteInfo(t, schema.CRUDAll, "http://fleet:8080")
	access := NewAccessor(zap.NewNop(), nil)

	_, err := access.Update(context.Background(), info, &Device{}, Credentials{})
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestAccessorDeleteSendsForceFlag(t *testing.T) {
	var gotMethod, gotTarget string
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotTarget = r.URL.String()
		json.NewEncoder(w).Encode(schema.ModelStatus{ID: "d1", Status: "deleted"})
	}))
	defer remote.Close()

	info := remoteInfo(t, schema.CRUDAll, remote.URL)
	access := NewAccessor(zap.NewNop(), nil)

	require.NoError(t, access.Delete(context.Background(), info, "d1", true, Credentials{}))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, info.Path+"/d1?$force=true", gotTarget)
}

func TestAccessorHonorsCRUDMask(t *testing.T) {
	info := remoteInfo(t, schema.Read, "http://fleet:8080")
	access := NewAccessor(zap.NewNop(), nil)

	_, err := access.Create(context.Background(), info, &Device{}, Credentials{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindMethodNotAllowed))

	err = access.Delete(context.Background(), info, "d1", false, Credentials{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindMethodNotAllowed))
}

func TestAccessorMapsRemoteErrors(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"message": "duplicate id d1"})
	}))
	defer remote.Close()

	info := remoteInfo(t, schema.CRUDAll, remote.URL)
	access := NewAccessor(zap.NewNop(), nil)

	_, err := access.Create(context.Background(), info, &Device{Name: "dup"}, Credentials{})
	assert.True(t, apperrors.IsConflict(err))
	assert.Contains(t, err.Error(), "duplicate id d1")
}
