//go:build !hdf5

package samples

import "longrec/internal/services"

// Hdf5Reader is unavailable without the hdf5 build tag.
type Hdf5Reader struct{}

// MatReader is unavailable without the hdf5 build tag.
type MatReader struct{}

func (Hdf5Reader) ReadSamples(path, _ string) (Data, error) {
	return Data{}, services.Wrap(services.ErrUnsupportedFormat, "samples", "open hdf5", path+": built without hdf5 support", nil)
}

func (MatReader) ReadSamples(path, _ string) (Data, error) {
	return Data{}, services.Wrap(services.ErrUnsupportedFormat, "samples", "open mat", path+": built without hdf5 support", nil)
}

func (Hdf5Reader) ReadAttribute(path, _ string) (float64, error) {
	return 0, services.Wrap(services.ErrUnsupportedFormat, "samples", "read attribute", path+": built without hdf5 support", nil)
}

func (MatReader) ReadAttribute(path, _ string) (float64, error) {
	return 0, services.Wrap(services.ErrUnsupportedFormat, "samples", "read attribute", path+": built without hdf5 support", nil)
}
