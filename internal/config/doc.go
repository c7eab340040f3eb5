// Package config loads, normalizes, and validates longrec configuration.
//
// The configuration is TOML. Besides the ambient sections (paths, logging,
// sync tuning) it declares the recording modalities: cameras first, then signal
// widgets and interval widgets, each with the directory, glob pattern and
// file-name timestamp rule used to build its timeline. Declaration order is
// significant: the first camera (or the first signal stream when there is no
// camera) is the reference modality.
//
// Load resolves the file from an explicit path, LONGREC_CONFIG,
// ~/.config/longrec/config.toml or ./longrec.toml, in that order.
package config
