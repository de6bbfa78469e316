// Package config loads and validates the TOML configuration that
// drives scanning, the compliance policy, encoder parameters, and
// run behavior.
package config
