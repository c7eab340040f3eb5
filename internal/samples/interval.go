package samples

import (
	"fmt"
	"math"

	"longrec/internal/services"
)

// Interval is a half-open [Start, End) range of frame indices.
type Interval struct {
	Start int
	End   int
}

// ReadIntervals loads interval data. Two-column files hold one start/end pair
// per row; one-dimensional files hold either a single pair (exactly two
// values) or a 0/1 series that is converted to intervals.
func ReadIntervals(reader Reader, path, key string) ([]Interval, error) {
	data, err := reader.ReadSamples(path, key)
	if err != nil {
		return nil, err
	}
	if data.Irregular() {
		out := make([]Interval, data.Len())
		for i := range out {
			out[i] = Interval{Start: int(data.Timestamps[i]), End: int(data.Values[i])}
		}
		return out, nil
	}
	if data.Len() == 2 {
		return []Interval{{Start: int(data.Values[0]), End: int(data.Values[1])}}, nil
	}
	return SeriesToIntervals(data.Values, 1), nil
}

// SeriesToIntervals returns the maximal runs of samples equal to value. NaN
// matches NaN.
func SeriesToIntervals(series []float64, value float64) []Interval {
	match := func(v float64) bool {
		if math.IsNaN(value) {
			return math.IsNaN(v)
		}
		return v == value
	}
	var out []Interval
	start := -1
	for i, v := range series {
		switch {
		case match(v) && start < 0:
			start = i
		case !match(v) && start >= 0:
			out = append(out, Interval{Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, Interval{Start: start, End: len(series)})
	}
	return out
}

// IntervalsToSeries renders intervals as a 0/1 series of n samples. When n is
// 0 the end of the last interval is used. An End of -1 extends to n.
func IntervalsToSeries(intervals []Interval, n int) ([]float64, error) {
	if n == 0 && len(intervals) > 0 {
		n = intervals[len(intervals)-1].End
		if n < 0 {
			return nil, services.Wrap(services.ErrFormat, "samples", "convert intervals", "open-ended last interval without a sample count", nil)
		}
	}
	series := make([]float64, n)
	for _, iv := range intervals {
		start, end := iv.Start, iv.End
		if end == -1 {
			end = n
		}
		if start < 0 {
			start = 0
		}
		if end > n {
			end = n
		}
		for i := start; i < end; i++ {
			series[i] = 1
		}
	}
	return series, nil
}

// ReadIntervalSeries loads interval data as a 0/1 series whose length is the
// end frame of the last interval.
func ReadIntervalSeries(reader Reader, path, key string) ([]float64, error) {
	intervals, err := ReadIntervals(reader, path, key)
	if err != nil {
		return nil, err
	}
	return IntervalsToSeries(intervals, 0)
}

// FileDuration returns the duration in seconds covered by one signal file.
// Regular files last sample count / frequency; irregular files (frequency 0)
// last until their final timestamp.
func FileDuration(reader Reader, path string, frequency float64, key string) (float64, error) {
	data, err := reader.ReadSamples(path, key)
	if err != nil {
		return 0, err
	}
	if frequency == 0 {
		if !data.Irregular() || data.Len() == 0 {
			return 0, nil
		}
		return data.Timestamps[data.Len()-1] / 1000, nil
	}
	if frequency < 0 || math.IsNaN(frequency) {
		return 0, services.Wrap(services.ErrConfiguration, "samples", "file duration", fmt.Sprintf("invalid frequency %v", frequency), nil)
	}
	return float64(data.Len()) / frequency, nil
}

// IntervalFileDuration returns the end frame of the last interval divided by
// frequency.
func IntervalFileDuration(reader Reader, path string, frequency float64, key string) (float64, error) {
	if frequency <= 0 || math.IsNaN(frequency) {
		return 0, services.Wrap(services.ErrConfiguration, "samples", "interval duration", fmt.Sprintf("invalid frequency %v", frequency), nil)
	}
	intervals, err := ReadIntervals(reader, path, key)
	if err != nil {
		return 0, err
	}
	if len(intervals) == 0 {
		return 0, nil
	}
	return float64(intervals[len(intervals)-1].End) / frequency, nil
}
