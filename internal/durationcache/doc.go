// Package durationcache persists per-file durations in SQLite so that long
// recordings with thousands of files do not have to be probed again on every
// session start.
//
// The cache is transient: rows are keyed on file size and modification time
// and an outdated schema is simply recreated.
package durationcache
