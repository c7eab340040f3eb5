// Package playlist exports the reference camera segmentation as an HLS VOD
// media playlist so a standard player can scrub the whole recording.
package playlist

import (
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/grafov/m3u8"

	"longrec/internal/reference"
	"longrec/internal/services"
)

// Options controls segment URIs.
type Options struct {
	// URIPrefix is prepended to each file name; empty keeps absolute paths.
	URIPrefix string
}

// Build returns a VOD playlist with one entry per reference segment that has
// a file. Holes and empty segments are skipped and the next entry is marked
// as a discontinuity.
func Build(ref reference.Reference, opts Options) (*m3u8.MediaPlaylist, error) {
	count := 0
	for _, seg := range ref.Segments {
		if seg.Path != "" && seg.Duration > 0 {
			count++
		}
	}
	if count == 0 {
		return nil, services.Wrap(services.ErrNotFound, "playlist", "build", fmt.Sprintf("reference %s has no playable segment", ref.ModalityID), nil)
	}

	pl, err := m3u8.NewMediaPlaylist(0, uint(count))
	if err != nil {
		return nil, fmt.Errorf("create playlist: %w", err)
	}
	pl.MediaType = m3u8.VOD

	gap := false
	first := true
	for _, seg := range ref.Segments {
		if seg.Path == "" || seg.Duration <= 0 {
			gap = true
			continue
		}
		if err := pl.Append(segmentURI(seg.Path, opts), seg.Duration, filepath.Base(seg.Path)); err != nil {
			return nil, fmt.Errorf("append segment %d: %w", seg.Index, err)
		}
		if err := pl.SetProgramDateTime(seg.Begin); err != nil {
			return nil, fmt.Errorf("segment %d date: %w", seg.Index, err)
		}
		if gap && !first {
			if err := pl.SetDiscontinuity(); err != nil {
				return nil, fmt.Errorf("segment %d discontinuity: %w", seg.Index, err)
			}
		}
		gap, first = false, false
	}
	pl.Close()
	return pl, nil
}

// Write encodes the playlist of ref to w.
func Write(w io.Writer, ref reference.Reference, opts Options) error {
	pl, err := Build(ref, opts)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, pl.Encode())
	return err
}

func segmentURI(path string, opts Options) string {
	if opts.URIPrefix == "" {
		return path
	}
	return strings.TrimRight(opts.URIPrefix, "/") + "/" + url.PathEscape(filepath.Base(path))
}
