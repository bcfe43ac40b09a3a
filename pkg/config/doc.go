// Package config loads coordinator daemon configuration from TOML files,
// overlaying values onto built-in defaults and validating the result.
// Durations are written in Go syntax ("30s", "5m").
package config
