// Package config loads, normalizes, and validates ladle's TOML
// configuration.
//
// Load resolves the config file (explicit path, ~/.config/ladle/config.toml,
// or ./ladle.toml), merges it over Default(), expands filesystem paths, pulls
// secrets from the environment (.env files included), and validates the
// result. Downstream packages receive a *Config that is ready to use.
package config
