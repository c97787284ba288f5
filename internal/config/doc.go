// Package config loads and validates the TOML configuration for shoutd.
package config
