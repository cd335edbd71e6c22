// Package config loads, normalizes, and validates mediaspool configuration.
//
// Configuration is TOML with a three-phase pipeline: Default() establishes
// repository defaults, normalize() expands paths and fills gaps, and
// Validate() rejects unusable values. Path fields in a loaded Config are
// always absolute.
package config
