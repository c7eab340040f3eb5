package samples

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
)

// WriteText stores data as a text table readable by TextReader: one value
// per line, or "timestamp value" pairs for irregular data.
func WriteText(path string, data Data) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create text: %w", err)
	}
	w := bufio.NewWriter(file)
	for i, v := range data.Values {
		if data.Irregular() {
			w.WriteString(strconv.FormatFloat(data.Timestamps[i], 'f', -1, 64))
			w.WriteByte(' ')
		}
		w.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("write text: %w", err)
	}
	return file.Close()
}
