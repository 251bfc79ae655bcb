// Package topology discovers the realm, zonegroups and zones of a multisite
// deployment and identifies the master zone.
package topology
