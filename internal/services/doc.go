// Package services defines shared utilities consumed by the synchronization
// pipeline components and their adapters.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, segment indexes, stream IDs and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that let callers decide
//     whether a failure is fatal for the session, for one file, or for one
//     segment reload.
//
// Use these helpers when wiring new components so error classification and
// observability stay uniform across the engine.
package services
