// Package config loads, normalizes, and validates ferry configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FERRY_REMOTE_BUCKET and AWS_REGION. The Config type centralizes every knob
// the daemon and CLI need so the state directory, upload limits, and remote
// store credentials are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
