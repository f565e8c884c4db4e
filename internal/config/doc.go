// Package config loads, defaults, and validates the TOML configuration
// for the newscast coordinator.
package config
