package topology

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/tidwall/gjson"

	"github.com/dreamware/rgwsync/internal/admin"
	"github.com/dreamware/rgwsync/internal/model"
)

// ErrDiscoveryFailed is returned when neither the period nor the zonegroup
// could be read. Multisite is most likely not configured.
var ErrDiscoveryFailed = errors.New("cannot discover topology: period get and zonegroup get both failed")

// UnknownRealm is reported when the realm cannot be read.
const UnknownRealm = "unknown"

// Discoverer assembles the realm, zonegroup and zone layout from admin
// commands, falling back to cheaper commands when the preferred ones fail.
type Discoverer struct {
	runner admin.Runner
	log    logr.Logger
}

// NewDiscoverer creates a Discoverer that issues commands through runner.
func NewDiscoverer(runner admin.Runner, log logr.Logger) *Discoverer {
	return &Discoverer{runner: runner, log: log.WithName("topology")}
}

// Discover reads the topology once.
//
// The realm comes from "realm get", or from the first entry of "realm list"
// when that fails; an unreadable realm is not an error. Zones come from
// "period get" or, failing that, "zonegroup get". When both fail the error
// wraps ErrDiscoveryFailed.
func (d *Discoverer) Discover(ctx context.Context) (*model.Topology, error) {
	d.log.Info("discovering multisite topology")

	topo := &model.Topology{
		Realm:              d.realmName(ctx),
		Zonegroups:         []string{},
		Zones:              []model.Zone{},
		RESTValidatedZones: []string{},
	}
	d.log.Info("realm resolved", "realm", topo.Realm)

	period, err := d.runner.Run(ctx, []string{"period", "get"}, admin.ModeJSON, admin.StatusTimeout)
	if err == nil {
		root := gjson.ParseBytes(period.JSON)
		if pm := root.Get("period_map"); pm.Exists() {
			root = pm
		}
		for _, zg := range root.Get("zonegroups").Array() {
			addZonegroup(topo, zg)
		}
	} else {
		d.log.Info("period get failed, trying zonegroup get", "error", err.Error())
		zg, zgErr := d.runner.Run(ctx, []string{"zonegroup", "get"}, admin.ModeJSON, admin.StatusTimeout)
		if zgErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrDiscoveryFailed, zgErr)
		}
		addZonegroup(topo, gjson.ParseBytes(zg.JSON))
	}

	if !topo.Finalize() && len(topo.Zones) > 0 {
		d.log.Info("WARNING: no master zone identified, using first zone", "zone", topo.MasterZone)
	}

	d.log.Info("topology discovered", "zones", len(topo.Zones), "zonegroups", len(topo.Zonegroups),
		"master", topo.MasterZone, "secondaries", topo.SecondaryZones)
	for _, z := range topo.Zones {
		d.log.V(1).Info("zone", "name", z.Name, "master", z.IsMaster, "endpoints", z.Endpoints, "zonegroup", z.Zonegroup)
	}
	return topo, nil
}

func (d *Discoverer) realmName(ctx context.Context) string {
	out, err := d.runner.Run(ctx, []string{"realm", "get"}, admin.ModeJSON, admin.StatusTimeout)
	if err != nil {
		d.log.Info("realm get failed, trying realm list", "error", err.Error())

		list, listErr := d.runner.Run(ctx, []string{"realm", "list"}, admin.ModeJSON, admin.StatusTimeout)
		if listErr != nil {
			return UnknownRealm
		}
		first := gjson.GetBytes(list.JSON, "realms.0").String()
		if first == "" {
			return UnknownRealm
		}
		out, err = d.runner.Run(ctx, []string{"realm", "get", "--rgw-realm", first}, admin.ModeJSON, admin.StatusTimeout)
		if err != nil {
			return UnknownRealm
		}
	}
	if name := gjson.GetBytes(out.JSON, "name").String(); name != "" {
		return name
	}
	return UnknownRealm
}

func addZonegroup(topo *model.Topology, zg gjson.Result) {
	name := zg.Get("name").String()
	if name == "" {
		name = "default"
	}
	masterID := zg.Get("master_zone").String()
	topo.Zonegroups = append(topo.Zonegroups, name)

	for _, z := range zg.Get("zones").Array() {
		id := z.Get("id").String()
		endpoints := []string{}
		for _, ep := range z.Get("endpoints").Array() {
			endpoints = append(endpoints, ep.String())
		}
		topo.Zones = append(topo.Zones, model.Zone{
			ID:        id,
			Name:      z.Get("name").String(),
			Endpoints: endpoints,
			IsMaster:  id != "" && id == masterID,
			Zonegroup: name,
		})
	}
}
