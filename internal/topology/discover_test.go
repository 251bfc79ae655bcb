package topology

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/rgwsync/internal/admin"
	"github.com/dreamware/rgwsync/internal/admin/admintest"
)

const periodJSON = `{
  "id": "period-1",
  "period_map": {
    "zonegroups": [
      {
        "name": "us",
        "master_zone": "z1",
        "zones": [
          {"id": "z1", "name": "us-east", "endpoints": ["http://east:8080"]},
          {"id": "z2", "name": "us-west", "endpoints": ["http://west:8080", "http://west2:8080"]},
          {"id": "z3", "name": "us-backup", "endpoints": []}
        ]
      }
    ]
  }
}`

func TestDiscoverFromPeriod(t *testing.T) {
	r := admintest.New().
		On("realm get", `{"id":"r1","name":"gold"}`).
		On("period get", periodJSON)

	topo, err := NewDiscoverer(r, logr.Discard()).Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "gold", topo.Realm)
	assert.Equal(t, []string{"us"}, topo.Zonegroups)
	require.Len(t, topo.Zones, 3)
	assert.Equal(t, "us-east", topo.MasterZone)
	assert.Equal(t, []string{"us-west", "us-backup"}, topo.SecondaryZones)
	assert.False(t, topo.SingleZone)
	assert.Equal(t, []string{"http://west:8080", "http://west2:8080"}, topo.Zones[1].Endpoints)
	assert.Empty(t, topo.Zones[2].Endpoints)
	assert.Equal(t, "us", topo.Zones[1].Zonegroup)
	assert.False(t, r.Called("zonegroup get"))
}

func TestDiscoverPeriodWithoutMap(t *testing.T) {
	r := admintest.New().
		On("realm get", `{"name":"gold"}`).
		On("period get", `{"zonegroups":[{"master_zone":"a","zones":[{"id":"a","name":"only"}]}]}`)

	topo, err := NewDiscoverer(r, logr.Discard()).Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"default"}, topo.Zonegroups)
	assert.Equal(t, "only", topo.MasterZone)
	assert.True(t, topo.SingleZone)
}

func TestDiscoverRealmFallback(t *testing.T) {
	t.Run("realm list then realm get by name", func(t *testing.T) {
		r := admintest.New().
			Fail("realm get", admin.KindExit, "failed to init realm").
			On("realm list", `{"default_info":"","realms":["silver","bronze"]}`).
			On("realm get --rgw-realm silver", `{"name":"silver"}`).
			On("period get", periodJSON)

		topo, err := NewDiscoverer(r, logr.Discard()).Discover(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "silver", topo.Realm)
	})

	t.Run("unknown when nothing answers", func(t *testing.T) {
		r := admintest.New().
			Fail("realm get", admin.KindNoRealm, "no realm").
			On("realm list", `{"realms":[]}`).
			On("period get", periodJSON)

		topo, err := NewDiscoverer(r, logr.Discard()).Discover(context.Background())
		require.NoError(t, err)
		assert.Equal(t, UnknownRealm, topo.Realm)
	})
}

func TestDiscoverZonegroupFallback(t *testing.T) {
	r := admintest.New().
		On("realm get", `{"name":"gold"}`).
		Fail("period get", admin.KindExit, "period not found").
		On("zonegroup get", `{"name":"eu","master_zone":"missing","zones":[{"id":"x","name":"eu-1"},{"id":"y","name":"eu-2"}]}`)

	topo, err := NewDiscoverer(r, logr.Discard()).Discover(context.Background())
	require.NoError(t, err)

	// no zone matches master_zone, so the first zone is promoted
	assert.Equal(t, "eu-1", topo.MasterZone)
	assert.True(t, topo.Zones[0].IsMaster)
	assert.Equal(t, []string{"eu-2"}, topo.SecondaryZones)
}

func TestDiscoverFails(t *testing.T) {
	r := admintest.New().
		On("realm get", `{"name":"gold"}`).
		Fail("period get", admin.KindExit, "nope").
		Fail("zonegroup get", admin.KindTimeout, "")

	topo, err := NewDiscoverer(r, logr.Discard()).Discover(context.Background())
	assert.Nil(t, topo)
	assert.ErrorIs(t, err, ErrDiscoveryFailed)
	assert.Equal(t, admin.KindTimeout, admin.KindOf(err))
}
