package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// RecordingName returns "<prefix>_<epoch seconds><ext>", the name layout
// matched by PosixRule.
func RecordingName(prefix string, begin time.Time, ext string) string {
	return fmt.Sprintf("%s_%d%s", prefix, begin.Unix(), ext)
}

// WriteSeries writes a one-column text file of values under dir and returns
// its path.
func WriteSeries(t testing.TB, dir, prefix string, begin time.Time, values []float64) string {
	t.Helper()

	var b strings.Builder
	for _, v := range values {
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		b.WriteByte('\n')
	}
	return writeRecording(t, dir, RecordingName(prefix, begin, ".txt"), b.String())
}

// WriteTable writes a two-column "timestamp_ms,value" text file under dir and
// returns its path.
func WriteTable(t testing.TB, dir, prefix string, begin time.Time, timestamps, values []float64) string {
	t.Helper()

	if len(timestamps) != len(values) {
		t.Fatalf("WriteTable: %d timestamps for %d values", len(timestamps), len(values))
	}
	var b strings.Builder
	for i := range timestamps {
		fmt.Fprintf(&b, "%s,%s\n",
			strconv.FormatFloat(timestamps[i], 'f', -1, 64),
			strconv.FormatFloat(values[i], 'f', -1, 64))
	}
	return writeRecording(t, dir, RecordingName(prefix, begin, ".txt"), b.String())
}

// Ramp returns n values start, start+1, ...
func Ramp(n int, start float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

func writeRecording(t testing.TB, dir, name, content string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
