// Package reference designates the modality whose files define the
// navigation segments and measures those segments.
//
// The first camera is preferred, else the first signal stream. Durations are
// obtained through a Prober (ffprobe for video, sample counts for signals),
// with a bounded worker pool once the file count crosses a threshold.
package reference
