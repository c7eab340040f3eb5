// Package preflight provides readiness checks for the directories and
// external binaries a recording session depends on.
//
// The CLI "longrec check" command prints every result; session start only
// needs the modality directories, so failures there are reported before the
// timeline scan turns them into configuration errors.
package preflight
