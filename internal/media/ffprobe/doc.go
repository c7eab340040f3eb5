// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe on one file; the Result helpers derive the video frame
// rate, frame count and duration used to segment the reference timeline.
package ffprobe
