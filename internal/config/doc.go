// Package config loads, normalizes, and validates treklist configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and centralizes every knob the CLI and the
// library core need: the data directory holding the JSON registries and
// playlist stores, the metadata cache location, scanner extensions and
// depth limits, and log output settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized absolute paths and clear validation errors.
package config
