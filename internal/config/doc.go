// Package config defines the settings of a mirror run and provides helpers
// to load, validate and save them in YAML format.
//
// Command-line flags are applied on top of a loaded Config by the CLI; Validate
// is run again afterwards so both sources go through the same checks.
package config
