// Package syncplan computes synchronization descriptors: for every reference
// segment and every other stream, the ordered files overlapping the segment
// window, a leading gap when the stream starts late, and the offset to trim
// when its first file starts early.
//
// Descriptors can be persisted as small text artifacts, one per segment and
// stream:
//
//	None *=* 30
//	dir/file1.h5
//
// means 30 s without data, then dir/file1.h5 until the segment ends, and
//
//	dir/file2.h5 *=* 50
//	dir/file3.h5
//
// skips the first 50 s of dir/file2.h5 then continues with dir/file3.h5.
package syncplan
