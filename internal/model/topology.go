package model

import "golang.org/x/exp/slices"

// Zone is one site of the multisite deployment as recorded in the period map.
type Zone struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Endpoints []string `json:"endpoints"`
	IsMaster  bool     `json:"is_master"`
	Zonegroup string   `json:"zonegroup"`
}

// Topology is the realm → zonegroup → zone map discovered at startup.
//
// MasterZone and SecondaryZones are derived by Finalize. SecondaryDataAvailable
// is refreshed by every collection cycle, not by discovery.
type Topology struct {
	Realm                  string   `json:"realm"`
	Zonegroups             []string `json:"zonegroups"`
	Zones                  []Zone   `json:"zones"`
	MasterZone             string   `json:"master_zone"`
	SecondaryZones         []string `json:"secondary_zones"`
	SingleZone             bool     `json:"is_single_zone"`
	SecondaryDataAvailable bool     `json:"secondary_data_available"`
	RESTValidatedZones     []string `json:"rest_validated_zones"`
}

// Finalize derives the master and secondary zone names from the IsMaster flags.
// When no zone is flagged the first zone is promoted and false is returned so
// the caller can warn about it.
func (t *Topology) Finalize() bool {
	marked := slices.IndexFunc(t.Zones, func(z Zone) bool { return z.IsMaster })
	promoted := false
	if marked < 0 && len(t.Zones) > 0 {
		t.Zones[0].IsMaster = true
		marked = 0
		promoted = true
	}

	t.MasterZone = ""
	t.SecondaryZones = make([]string, 0, len(t.Zones))
	for i, z := range t.Zones {
		if i == marked {
			t.MasterZone = z.Name
			continue
		}
		// Only the first flagged zone is the master; a second flag is treated as a secondary.
		t.Zones[i].IsMaster = false
		t.SecondaryZones = append(t.SecondaryZones, z.Name)
	}
	t.SingleZone = len(t.SecondaryZones) == 0
	return !promoted
}

// Master returns the master zone, if any zone was discovered.
func (t *Topology) Master() (Zone, bool) {
	for _, z := range t.Zones {
		if z.IsMaster {
			return z, true
		}
	}
	return Zone{}, false
}

// Secondaries returns every non-master zone in discovery order.
func (t *Topology) Secondaries() []Zone {
	out := make([]Zone, 0, len(t.Zones))
	for _, z := range t.Zones {
		if !z.IsMaster {
			out = append(out, z)
		}
	}
	return out
}

// HasZone reports whether name is one of the discovered zones.
func (t *Topology) HasZone(name string) bool {
	return slices.ContainsFunc(t.Zones, func(z Zone) bool { return z.Name == name })
}

// Clone returns a deep copy safe to hand to readers.
func (t *Topology) Clone() *Topology {
	if t == nil {
		return nil
	}
	c := *t
	c.Zonegroups = slices.Clone(t.Zonegroups)
	c.SecondaryZones = slices.Clone(t.SecondaryZones)
	c.RESTValidatedZones = slices.Clone(t.RESTValidatedZones)
	c.Zones = make([]Zone, len(t.Zones))
	for i, z := range t.Zones {
		z.Endpoints = slices.Clone(z.Endpoints)
		c.Zones[i] = z
	}
	return &c
}
