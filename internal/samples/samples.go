package samples

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"longrec/internal/services"
)

// Data is the content of one signal file. Regularly sampled files fill Values
// only. Irregular files also carry Timestamps in milliseconds, one per value.
type Data struct {
	Timestamps []float64
	Values     []float64
}

// Irregular reports whether the data carries its own timestamps.
func (d Data) Irregular() bool { return d.Timestamps != nil }

// Len returns the number of samples.
func (d Data) Len() int { return len(d.Values) }

// Reader loads the samples stored under key in the file at path.
type Reader interface {
	ReadSamples(path, key string) (Data, error)
}

// AttributeReader loads a scalar attribute such as a sampling frequency.
type AttributeReader interface {
	ReadAttribute(path, key string) (float64, error)
}

// Registry dispatches reads to a Reader chosen by file extension.
type Registry struct {
	mu      sync.RWMutex
	readers map[string]Reader
}

// NewRegistry returns a registry with the text, WAV, HDF5 and MAT readers
// registered.
func NewRegistry() *Registry {
	r := &Registry{readers: make(map[string]Reader)}
	text := TextReader{}
	r.Register(".txt", text)
	r.Register(".csv", text)
	r.Register(".wav", AudioReader{})
	r.Register(".h5", Hdf5Reader{})
	r.Register(".hdf5", Hdf5Reader{})
	r.Register(".mat", MatReader{})
	return r
}

// Register associates ext (with leading dot) with reader, replacing any
// previous association.
func (r *Registry) Register(ext string, reader Reader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readers[strings.ToLower(ext)] = reader
}

func (r *Registry) lookup(path string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	r.mu.RLock()
	reader, ok := r.readers[ext]
	r.mu.RUnlock()
	if !ok {
		return nil, services.Wrap(services.ErrUnsupportedFormat, "samples", "lookup reader", fmt.Sprintf("no reader for %q (%s)", ext, filepath.Base(path)), nil)
	}
	return reader, nil
}

// ReadSamples implements Reader.
func (r *Registry) ReadSamples(path, key string) (Data, error) {
	reader, err := r.lookup(path)
	if err != nil {
		return Data{}, err
	}
	return reader.ReadSamples(path, key)
}

// ReadAttribute implements AttributeReader. For formats without attributes a
// numeric key is returned as-is, so a literal frequency can be configured in
// its place.
func (r *Registry) ReadAttribute(path, key string) (float64, error) {
	reader, err := r.lookup(path)
	if err != nil {
		return 0, err
	}
	if attr, ok := reader.(AttributeReader); ok {
		return attr.ReadAttribute(path, key)
	}
	if value, err := strconv.ParseFloat(strings.TrimSpace(key), 64); err == nil {
		return value, nil
	}
	return 0, services.Wrap(services.ErrUnsupportedFormat, "samples", "read attribute", fmt.Sprintf("%s has no attribute %q", filepath.Base(path), key), nil)
}

// SplitKey separates a dataset key from an optional column selector written
// as "dataset - column".
func SplitKey(key string) (dataset, column string) {
	dataset, column, found := strings.Cut(key, " - ")
	if !found {
		return strings.TrimSpace(key), ""
	}
	return strings.TrimSpace(dataset), strings.TrimSpace(column)
}

// fromColumns builds Data from a row-major table. One column gives a regular
// series; otherwise column 0 holds the timestamps and valueCol the values.
func fromColumns(rows [][]float64, valueCol int) (Data, error) {
	if len(rows) == 0 {
		return Data{Values: []float64{}}, nil
	}
	width := len(rows[0])
	if width == 1 {
		values := make([]float64, len(rows))
		for i, row := range rows {
			values[i] = row[0]
		}
		return Data{Values: values}, nil
	}
	if valueCol <= 0 {
		valueCol = 1
	}
	if valueCol >= width {
		return Data{}, services.Wrap(services.ErrFormat, "samples", "select column", fmt.Sprintf("column %d out of range (%d columns)", valueCol, width), nil)
	}
	data := Data{Timestamps: make([]float64, len(rows)), Values: make([]float64, len(rows))}
	for i, row := range rows {
		if len(row) != width {
			return Data{}, services.Wrap(services.ErrFormat, "samples", "parse table", fmt.Sprintf("row %d has %d columns, expected %d", i, len(row), width), nil)
		}
		data.Timestamps[i] = row[0]
		data.Values[i] = row[valueCol]
	}
	return data, nil
}

// fromMatrix builds Data from a flat buffer of the given shape. columnMajor is
// set for MATLAB files, whose matrices are stored transposed.
func fromMatrix(flat []float64, dims []uint, columnMajor bool, valueCol int) (Data, error) {
	switch len(dims) {
	case 0:
		return Data{Values: append([]float64{}, flat...)}, nil
	case 1:
		return Data{Values: append([]float64{}, flat...)}, nil
	case 2:
	default:
		return Data{}, services.Wrap(services.ErrFormat, "samples", "read matrix", fmt.Sprintf("unsupported rank %d", len(dims)), nil)
	}
	rows, cols := int(dims[0]), int(dims[1])
	if columnMajor {
		rows, cols = cols, rows
	}
	if rows == 1 || cols == 1 {
		return Data{Values: append([]float64{}, flat...)}, nil
	}
	at := func(r, c int) float64 {
		if columnMajor {
			return flat[c*rows+r]
		}
		return flat[r*cols+c]
	}
	table := make([][]float64, rows)
	for r := range table {
		row := make([]float64, cols)
		for c := range row {
			row[c] = at(r, c)
		}
		table[r] = row
	}
	return fromColumns(table, valueCol)
}

func columnIndex(column string) (int, error) {
	if column == "" {
		return 0, nil
	}
	idx, err := strconv.Atoi(column)
	if err != nil || idx < 0 {
		return 0, services.Wrap(services.ErrFormat, "samples", "parse key", fmt.Sprintf("invalid column %q", column), err)
	}
	return idx, nil
}
