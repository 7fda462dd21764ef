package querylog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// exportEntry is the wire shape of one entry in JSON exports.
type exportEntry struct {
	Query           string  `json:"query"`
	Params          []any   `json:"params"`
	ExecutionTimeMS float64 `json:"execution_time_ms"`
	Timestamp       string  `json:"timestamp"`
}

// exportDocument is the top-level JSON export shape.
type exportDocument struct {
	Entries []exportEntry `json:"entries"`
	Stats   Stats         `json:"stats"`
}

// ExportJSON writes all entries plus computed statistics as a JSON object
// with "entries" and "stats" keys. Timestamps are ISO 8601.
func (l *Logger) ExportJSON(w io.Writer) error {
	entries := l.Entries()

	doc := exportDocument{
		Entries: make([]exportEntry, len(entries)),
		Stats:   l.Stats(),
	}
	for i, e := range entries {
		doc.Entries[i] = exportEntry{
			Query:           e.Query,
			Params:          e.Params,
			ExecutionTimeMS: durationMS(e.Duration),
			Timestamp:       e.Timestamp.Format(time.RFC3339Nano),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode query log: %w", err)
	}
	return nil
}

// ExportJSONFile writes the JSON export to a file.
func (l *Logger) ExportJSONFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := l.ExportJSON(f); err != nil {
		return err
	}
	l.log.Info("exported query log", slog.String("path", path), slog.String("format", "json"))
	return nil
}

// ExportCSV writes one row per entry with a header row. Parameters are
// serialized to their string form.
func (l *Logger) ExportCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"Timestamp", "Query", "Parameters", "Execution Time (ms)"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range l.Entries() {
		record := []string{
			e.Timestamp.Format(time.RFC3339Nano),
			e.Query,
			formatParams(e.Params),
			strconv.FormatFloat(durationMS(e.Duration), 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// ExportCSVFile writes the CSV export to a file.
func (l *Logger) ExportCSVFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := l.ExportCSV(f); err != nil {
		return err
	}
	l.log.Info("exported query log", slog.String("path", path), slog.String("format", "csv"))
	return nil
}
