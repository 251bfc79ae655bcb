// Package config loads YAML configuration for the monitor and the zone agent.
//
// Precedence for the monitor is environment over file over defaults; for the
// agent the command line overrides the file, which overrides defaults.
package config
