// Package config loads, normalizes, and validates imgvault configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a working-directory .env file, and
// honours environment fallbacks such as IMGVAULT_SECRET. The Config type
// centralizes every knob the conversion pipeline, API server, and CLI need:
// upload and vault locations, target format and quality, eligible MIME types,
// batch sizing, and the metadata namespace.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical formats, and clear validation errors.
package config
