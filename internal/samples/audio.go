package samples

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"longrec/internal/services"
)

// AudioReader loads one channel of a PCM WAV file. A key containing "right"
// selects the second channel, anything else the first.
type AudioReader struct{}

func channelForKey(key string) int {
	if strings.Contains(strings.ToLower(key), "right") {
		return 1
	}
	return 0
}

func openWAV(path string) (*os.File, *wav.Decoder, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrNotFound, "samples", "open wav", path, err)
	}
	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, nil, services.Wrap(services.ErrFormat, "samples", "decode wav", fmt.Sprintf("%s is not a valid WAV file", path), nil)
	}
	return file, decoder, nil
}

func (AudioReader) ReadSamples(path, key string) (Data, error) {
	file, decoder, err := openWAV(path)
	if err != nil {
		return Data{}, err
	}
	defer file.Close()

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Data{}, services.Wrap(services.ErrFormat, "samples", "decode wav", path, err)
	}
	channels := int(decoder.NumChans)
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	if channels <= 0 {
		channels = 1
	}
	channel := channelForKey(key)
	if channel >= channels {
		channel = 0
	}

	frames := len(buf.Data) / channels
	values := make([]float64, frames)
	for i := 0; i < frames; i++ {
		values[i] = float64(buf.Data[i*channels+channel])
	}
	return Data{Values: values}, nil
}

// ReadAttribute returns the sample rate regardless of key.
func (AudioReader) ReadAttribute(path, _ string) (float64, error) {
	file, decoder, err := openWAV(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	return float64(decoder.SampleRate), nil
}

// WriteWAV stores a mono 16-bit PCM file. Values are rounded and clipped to
// the int16 range.
func WriteWAV(path string, values []float64, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	encoder := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	data := make([]int, len(values))
	for i, v := range values {
		switch {
		case v > 32767:
			data[i] = 32767
		case v < -32768:
			data[i] = -32768
		default:
			data[i] = int(math.Round(v))
		}
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		file.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := encoder.Close(); err != nil {
		file.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	return file.Close()
}
