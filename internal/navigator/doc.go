// Package navigator implements frame-accurate navigation across the segments
// of a long recording. Transitions are pure: they take a State and return the
// next one along with whether the segment changed, so the owner decides when
// to reassemble streams.
package navigator
