// Package samples decodes signal files into numeric sample arrays.
//
// A Registry dispatches on file extension to the text, WAV, HDF5 and MAT
// readers. HDF5 and MAT support require building with the hdf5 tag (cgo and
// libhdf5); otherwise those readers report services.ErrUnsupportedFormat.
// Interval files are converted between start/end pairs and 0/1 series so they
// can be assembled like any regular signal.
package samples
