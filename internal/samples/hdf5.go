//go:build hdf5

package samples

import (
	"fmt"
	"path"

	"gonum.org/v1/hdf5"

	"longrec/internal/services"
)

// Hdf5Reader loads a dataset from an HDF5 file. The key is the dataset path,
// optionally followed by " - <column>".
type Hdf5Reader struct{}

// MatReader loads a variable from a MATLAB v7.3 file, which is HDF5 with
// matrices stored transposed.
type MatReader struct{}

func (Hdf5Reader) ReadSamples(filePath, key string) (Data, error) {
	return readDataset(filePath, key, false)
}

func (MatReader) ReadSamples(filePath, key string) (Data, error) {
	return readDataset(filePath, key, true)
}

func (Hdf5Reader) ReadAttribute(filePath, key string) (float64, error) {
	return readDatasetAttribute(filePath, key)
}

// ReadAttribute on a MAT file reads a scalar variable named by key.
func (MatReader) ReadAttribute(filePath, key string) (float64, error) {
	data, err := readDataset(filePath, key, true)
	if err != nil {
		return 0, err
	}
	if data.Len() == 0 {
		return 0, services.Wrap(services.ErrFormat, "samples", "read attribute", fmt.Sprintf("%s: %q is empty", filePath, key), nil)
	}
	return data.Values[0], nil
}

func readDataset(filePath, key string, columnMajor bool) (Data, error) {
	name, column := SplitKey(key)
	valueCol, err := columnIndex(column)
	if err != nil {
		return Data{}, err
	}

	file, err := hdf5.OpenFile(filePath, hdf5.F_ACC_RDONLY)
	if err != nil {
		return Data{}, services.Wrap(services.ErrNotFound, "samples", "open hdf5", filePath, err)
	}
	defer file.Close()

	dataset, err := file.OpenDataset(name)
	if err != nil {
		return Data{}, services.Wrap(services.ErrFormat, "samples", "open dataset", fmt.Sprintf("%s: %q", filePath, name), err)
	}
	defer dataset.Close()

	space := dataset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return Data{}, services.Wrap(services.ErrFormat, "samples", "read dataset shape", filePath, err)
	}

	total := 1
	for _, d := range dims {
		total *= int(d)
	}
	flat := make([]float64, total)
	if total > 0 {
		if err := dataset.Read(&flat); err != nil {
			return Data{}, services.Wrap(services.ErrFormat, "samples", "read dataset", fmt.Sprintf("%s: %q", filePath, name), err)
		}
	}
	return fromMatrix(flat, dims, columnMajor, valueCol)
}

// readDatasetAttribute reads "dataset/attr" as a float64.
func readDatasetAttribute(filePath, key string) (float64, error) {
	datasetPath, attrName := path.Split(key)
	if datasetPath == "" || attrName == "" {
		return 0, services.Wrap(services.ErrUnsupportedFormat, "samples", "read attribute", fmt.Sprintf("attribute key %q must be <dataset>/<attribute>", key), nil)
	}

	file, err := hdf5.OpenFile(filePath, hdf5.F_ACC_RDONLY)
	if err != nil {
		return 0, services.Wrap(services.ErrNotFound, "samples", "open hdf5", filePath, err)
	}
	defer file.Close()

	dataset, err := file.OpenDataset(path.Clean(datasetPath))
	if err != nil {
		return 0, services.Wrap(services.ErrFormat, "samples", "open dataset", fmt.Sprintf("%s: %q", filePath, datasetPath), err)
	}
	defer dataset.Close()

	attr, err := dataset.OpenAttribute(attrName)
	if err != nil {
		return 0, services.Wrap(services.ErrFormat, "samples", "open attribute", fmt.Sprintf("%s: %q", filePath, key), err)
	}
	defer attr.Close()

	var value float64
	if err := attr.Read(&value, hdf5.T_NATIVE_DOUBLE); err != nil {
		return 0, services.Wrap(services.ErrFormat, "samples", "read attribute", fmt.Sprintf("%s: %q", filePath, key), err)
	}
	return value, nil
}
