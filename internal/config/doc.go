// Package config loads, normalizes, and validates stemworker configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours .env and environment fallbacks for
// credentials such as STEMWORKER_S3_SECRET_KEY. The Config type centralizes
// every knob the daemon and CLI need: queue endpoint, workspace root, shared
// output area, automation command, and the mix naming convention.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical backend names, and clear validation errors.
package config
