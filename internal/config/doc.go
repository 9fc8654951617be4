// Package config loads and validates ratchet configuration from TOML,
// applying defaults and expanding user paths.
package config
