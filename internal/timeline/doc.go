// Package timeline discovers the files of each recording modality and aligns
// the modalities against each other.
//
// Build scans one modality directory and orders its files by the begin time
// encoded in their names. Fill cross-compares several timelines and inserts
// hole entries so that position i of every filled timeline refers to the same
// period; the returned Alignment records that correspondence explicitly.
package timeline
