// Package timestamp extracts the beginning datetime of a recording file from
// its name.
package timestamp

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
	"golang.org/x/text/unicode/norm"

	"longrec/internal/services"
)

// FormatPosix selects integer epoch seconds instead of a strftime pattern.
const FormatPosix = "posix"

// Rule locates the timestamp token inside a file base name. Position is the
// zero-based token index after splitting on Delimiter; a negative value means
// unset.
type Rule struct {
	Delimiter string
	Position  int
	Format    string
	Location  *time.Location
}

// Unset reports whether the rule lacks any of delimiter, position or format.
func (r Rule) Unset() bool {
	return r.Delimiter == "" || r.Position < 0 || strings.TrimSpace(r.Format) == ""
}

func (r Rule) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

// Default returns the fixed datetime assigned to files whose modality has no
// usable timestamp rule: 2000-01-01 00:00:00 in the given location.
func Default(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(2000, time.January, 1, 0, 0, 0, 0, loc)
}

// ParseError reports a file name whose timestamp token does not match the
// rule's format.
type ParseError struct {
	Path   string
	Token  string
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("timestamp: cannot parse %q from %s with format %q: %v", e.Token, filepath.Base(e.Path), e.Format, e.Err)
}

// Unwrap exposes both the underlying parse failure and the format marker.
func (e *ParseError) Unwrap() []error {
	return []error{services.ErrFormat, e.Err}
}

// Resolve returns the beginning datetime encoded in path according to rule.
func Resolve(path string, rule Rule) (time.Time, error) {
	loc := rule.location()
	if rule.Unset() {
		return Default(loc), nil
	}

	name := BaseName(path)
	tokens := strings.Split(name, rule.Delimiter)
	if rule.Position >= len(tokens) {
		return Default(loc), nil
	}
	token := tokens[rule.Position]

	if rule.Format == FormatPosix {
		seconds, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
		if err != nil {
			return time.Time{}, &ParseError{Path: path, Token: token, Format: rule.Format, Err: err}
		}
		return time.Unix(seconds, 0).In(loc), nil
	}

	layout, err := strftime.Layout(rule.Format)
	if err != nil {
		return time.Time{}, &ParseError{Path: path, Token: token, Format: rule.Format, Err: err}
	}
	parsed, err := time.ParseInLocation(layout, token, loc)
	if err != nil {
		return time.Time{}, &ParseError{Path: path, Token: token, Format: rule.Format, Err: err}
	}
	return parsed, nil
}

// BaseName returns the NFC-normalized file name without directory and
// extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return norm.NFC.String(base)
}

// ValidateFormat checks that a strftime pattern can be converted. The posix
// keyword is always valid.
func ValidateFormat(format string) error {
	if format == FormatPosix || strings.TrimSpace(format) == "" {
		return nil
	}
	if _, err := strftime.Layout(format); err != nil {
		return errors.Join(services.ErrConfiguration, fmt.Errorf("timestamp format %q: %w", format, err))
	}
	return nil
}
