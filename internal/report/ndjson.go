package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nao1215/linkscan/internal/model"
)

// maxRecordSize bounds a single line accepted by ReadRecords.
const maxRecordSize = 1 << 20

// NDJSONWriter writes one model.Record per line, in discovery order.
type NDJSONWriter struct {
	baseWriter
}

// NewNDJSONWriter creates an NDJSONWriter that outputs to the given writer.
func NewNDJSONWriter(output io.Writer) *NDJSONWriter {
	return &NDJSONWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs every link of the report as a record line.
func (w *NDJSONWriter) Write(report *model.ScanReport) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// URLs keep their '&' as is.
	enc.SetEscapeHTML(false)

	for _, l := range report.Links {
		if err := enc.Encode(model.NewRecord(l)); err != nil {
			return 0, fmt.Errorf("failed to encode record for %s: %w", l.ResolvedURL, err)
		}
	}
	return w.output.Write(buf.Bytes())
}

// ReadRecords parses NDJSON records. Blank lines are skipped.
func ReadRecords(r io.Reader) ([]model.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)

	var records []model.Record
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec model.Record
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, fmt.Errorf("invalid record on line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}
