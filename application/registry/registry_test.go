package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"uerp-backend/domain/schema"
)

type recordingDriver struct {
	order *[]string
	name  string
	fail  bool
}

func (d *recordingDriver) Connect(ctx context.Context) error    { return nil }
func (d *recordingDriver) Disconnect(ctx context.Context) error { return nil }
func (d *recordingDriver) Reconnect(ctx context.Context) error  { return nil }

func (d *recordingDriver) RegisterModel(ctx context.Context, info *schema.Info) error {
	*d.order = append(*d.order, d.name)
	if d.fail {
		return errors.New("backend down")
	}
	return nil
}

func (d *recordingDriver) Read(ctx context.Context, info *schema.Info, id string) (schema.Document, error) {
	return nil, nil
}
func (d *recordingDriver) Search(ctx context.Context, info *schema.Info, query *schema.Query) ([]schema.Document, error) {
	return nil, nil
}
func (d *recordingDriver) Count(ctx context.Context, info *schema.Info, query *schema.Query) (int64, error) {
	return 0, nil
}
func (d *recordingDriver) Create(ctx context.Context, info *schema.Info, docs ...schema.Document) error {
	return nil
}
func (d *recordingDriver) Update(ctx context.Context, info *schema.Info, docs ...schema.Document) error {
	return nil
}
func (d *recordingDriver) Delete(ctx context.Context, info *schema.Info, id string) error {
	return nil
}

type Widget struct {
	schema.Base
	Name string `json:"name" uerp:"keyword"`
}

func TestRegisterOrderAndLookup(t *testing.T) {
	var order []string
	reg := New(zap.NewNop(), "uerp", 1,
		&recordingDriver{order: &order, name: "cache"},
		&recordingDriver{order: &order, name: "search"},
		&recordingDriver{order: &order, name: "database"})

	info, err := reg.Register(context.Background(), &Widget{}, "store.catalog", schema.Config{
		CRUD:  schema.CRUDAll,
		Layer: schema.LayerCSD,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"database", "search", "cache"}, order)

	got, ok := reg.BySRef("store.catalog.Widget")
	require.True(t, ok)
	assert.Same(t, info, got)

	got, ok = reg.ByPath(info.Path)
	require.True(t, ok)
	assert.Same(t, info, got)

	assert.Len(t, reg.All(), 1)
}

func TestRegisterSkipsTiersOutsideLayer(t *testing.T) {
	var order []string
	reg := New(zap.NewNop(), "uerp", 1,
		&recordingDriver{order: &order, name: "cache"},
		&recordingDriver{order: &order, name: "search"},
		&recordingDriver{order: &order, name: "database"})

	_, err := reg.Register(context.Background(), &Widget{}, "store.catalog", schema.Config{
		CRUD:  schema.CRUDAll,
		Layer: schema.LayerCD,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"database", "cache"}, order)
}

func TestRegisterTierFailureAborts(t *testing.T) {
	var order []string
	reg := New(zap.NewNop(), "uerp", 1,
		&recordingDriver{order: &order, name: "cache"},
		&recordingDriver{order: &order, name: "search", fail: true},
		&recordingDriver{order: &order, name: "database"})

	_, err := reg.Register(context.Background(), &Widget{}, "store.catalog", schema.Config{
		Layer: schema.LayerCSD,
	})
	require.Error(t, err)
	assert.Equal(t, []string{"database", "search"}, order)

	_, ok := reg.BySRef("store.catalog.Widget")
	assert.False(t, ok)
}

func TestRegisterRemoteNeedsProvider(t *testing.T) {
	reg := New(zap.NewNop(), "uerp", 1, nil, nil, nil)

	_, err := reg.RegisterRemote(&Widget{}, "store.catalog", schema.Config{}, "", "store")
	assert.Error(t, err)

	info, err := reg.RegisterRemote(&Widget{}, "store.catalog", schema.Config{CRUD: schema.Read}, "http://store:8080", "store")
	require.NoError(t, err)
	assert.Equal(t, "http://store:8080", info.Provider)

	_, ok := reg.BySRef("store.catalog.Widget")
	assert.True(t, ok)
}
