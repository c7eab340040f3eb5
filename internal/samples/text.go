package samples

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"longrec/internal/services"
)

// TextReader loads whitespace- or comma-separated numeric tables. Blank lines
// and lines starting with '#' are skipped. The key may name a value column
// ("2" or "ecg - 2"); by default column 1 is used for multi-column files.
type TextReader struct{}

func (TextReader) ReadSamples(path, key string) (Data, error) {
	_, column := SplitKey(key)
	if column == "" {
		if _, err := strconv.Atoi(strings.TrimSpace(key)); err == nil {
			column = strings.TrimSpace(key)
		}
	}
	valueCol, err := columnIndex(column)
	if err != nil {
		return Data{}, err
	}

	file, err := os.Open(path)
	if err != nil {
		return Data{}, services.Wrap(services.ErrNotFound, "samples", "open text", path, err)
	}
	defer file.Close()

	var rows [][]float64
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\t'
		})
		row := make([]float64, len(fields))
		for i, field := range fields {
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return Data{}, services.Wrap(services.ErrFormat, "samples", "parse text", fmt.Sprintf("%s line %d", path, line), err)
			}
			row[i] = value
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return Data{}, services.Wrap(services.ErrFormat, "samples", "read text", path, err)
	}
	return fromColumns(rows, valueCol)
}
