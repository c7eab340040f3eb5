package syncplan

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"longrec/internal/services"
	"longrec/internal/timeline"
)

// Delimiter separates a path (or "None") from its number in artifact lines.
const Delimiter = " *=* "

const (
	gapToken        = "None"
	artifactTimeFmt = "2006-01-02T15-04-05"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ArtifactName returns the file name of the descriptor of streamID for the
// segment starting at begin.
func ArtifactName(streamID string, begin time.Time) string {
	id := strings.Trim(unsafeChars.ReplaceAllString(streamID, "_"), "_")
	if id == "" {
		id = "stream"
	}
	return fmt.Sprintf("%s_%s.txt", id, begin.Format(artifactTimeFmt))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteArtifact stores desc in dir and returns the file path. Metadata lines
// start with '#' and are optional on read.
func WriteArtifact(dir string, desc Descriptor) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure artifact dir: %w", err)
	}
	path := filepath.Join(dir, ArtifactName(desc.StreamID, desc.SegmentBegin))

	var b strings.Builder
	fmt.Fprintf(&b, "# stream=%s\n", desc.StreamID)
	fmt.Fprintf(&b, "# segment=%d\n", desc.SegmentIndex)
	fmt.Fprintf(&b, "# begin=%s\n", desc.SegmentBegin.Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "# duration=%s\n", formatNumber(desc.SegmentDuration))
	for _, e := range desc.Entries {
		switch {
		case e.Gap:
			b.WriteString(gapToken + Delimiter + formatNumber(e.GapSeconds) + "\n")
		case e.StartOffsetSeconds != 0:
			b.WriteString(e.File.Path + Delimiter + formatNumber(e.StartOffsetSeconds) + "\n")
		default:
			b.WriteString(e.File.Path + "\n")
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("commit artifact: %w", err)
	}
	return path, nil
}

// ReadArtifact parses a descriptor file. File entries carry only their path;
// use Descriptor.Resolve to restore begin times and durations.
func ReadArtifact(path string) (Descriptor, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Descriptor{}, services.Wrap(services.ErrNotFound, "syncplan", "read artifact", path, err)
		}
		return Descriptor{}, fmt.Errorf("open artifact: %w", err)
	}
	defer file.Close()

	var desc Descriptor
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if err := desc.parseMeta(strings.TrimSpace(strings.TrimPrefix(line, "#"))); err != nil {
				return Descriptor{}, services.Wrap(services.ErrFormat, "syncplan", "read artifact", fmt.Sprintf("%s line %d", path, lineNo), err)
			}
			continue
		}

		name, number, hasNumber := strings.Cut(line, Delimiter)
		var value float64
		if hasNumber {
			value, err = strconv.ParseFloat(strings.TrimSpace(number), 64)
			if err != nil {
				return Descriptor{}, services.Wrap(services.ErrFormat, "syncplan", "read artifact", fmt.Sprintf("%s line %d", path, lineNo), err)
			}
		}
		switch {
		case name == gapToken:
			if len(desc.Entries) > 0 {
				return Descriptor{}, services.Wrap(services.ErrFormat, "syncplan", "read artifact", fmt.Sprintf("%s line %d: gap after first line", path, lineNo), nil)
			}
			desc.Entries = append(desc.Entries, Entry{Gap: true, GapSeconds: value})
		default:
			desc.Entries = append(desc.Entries, Entry{File: timeline.SourceFile{Path: name}, StartOffsetSeconds: value})
		}
	}
	if err := scanner.Err(); err != nil {
		return Descriptor{}, fmt.Errorf("read artifact: %w", err)
	}
	return desc, nil
}

func (d *Descriptor) parseMeta(line string) error {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return nil
	}
	var err error
	switch strings.TrimSpace(key) {
	case "stream":
		d.StreamID = value
	case "segment":
		d.SegmentIndex, err = strconv.Atoi(value)
	case "begin":
		d.SegmentBegin, err = time.Parse(time.RFC3339Nano, value)
	case "duration":
		d.SegmentDuration, err = strconv.ParseFloat(value, 64)
	}
	return err
}

// Store owns an artifact directory for the lifetime of a session. The
// directory is locked so two sessions never interleave writes.
type Store struct {
	dir  string
	lock *flock.Flock
}

// OpenStore creates dir if needed and takes its lock.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure artifact dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, ".longrec.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire artifact lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "syncplan", "open store", fmt.Sprintf("artifact directory %s is used by another session", dir), nil)
	}
	return &Store{dir: dir, lock: lock}, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string { return s.dir }

// Write persists desc.
func (s *Store) Write(desc Descriptor) (string, error) {
	return WriteArtifact(s.dir, desc)
}

// Read loads the artifact of streamID for the segment starting at begin. The
// boolean is false when no artifact exists.
func (s *Store) Read(streamID string, begin time.Time) (Descriptor, bool, error) {
	desc, err := ReadArtifact(filepath.Join(s.dir, ArtifactName(streamID, begin)))
	if errors.Is(err, services.ErrNotFound) {
		return Descriptor{}, false, nil
	}
	if err != nil {
		return Descriptor{}, false, err
	}
	return desc, true, nil
}

// Purge removes every artifact of the directory.
func (s *Store) Purge() error {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.txt"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove artifact: %w", err)
		}
	}
	return nil
}

// Close releases the directory lock.
func (s *Store) Close() error {
	if s == nil || s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}
