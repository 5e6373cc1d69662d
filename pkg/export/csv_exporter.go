package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Placeholder written for cells with no value.
const emptyCell = "N/A"

var (
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
	tagRE    = regexp.MustCompile(`<[^>]*>`)
	spacedNL = regexp.MustCompile(`\s*\r?\n\s*`)
)

// CSVExporter renders Dataset records into CSV bytes compatible with
// spreadsheet imports: semicolon separated, CRLF line endings and a
// UTF-8 byte order mark so Excel detects the encoding.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}

	buf := &bytes.Buffer{}
	buf.Write(utf8BOM)

	writer := csv.NewWriter(buf)
	writer.Comma = ';'
	writer.UseCRLF = true

	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = CleanCell(row[header])
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// CleanCell normalises a raw cell value for export: markup is stripped,
// HTML entities decoded, embedded newlines collapsed to single spaces
// and empty values replaced with a placeholder.
func CleanCell(value string) string {
	value = tagRE.ReplaceAllString(value, "")
	value = html.UnescapeString(value)
	value = spacedNL.ReplaceAllString(value, " ")
	value = strings.TrimSpace(value)
	if value == "" {
		return emptyCell
	}
	return value
}
