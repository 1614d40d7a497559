package sources

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethanolivertroy/kpi-checker/internal/models"
)

// CSVSource reads a delimited file whose first row names the fields
type CSVSource struct {
	key       string
	Path      string
	Delimiter rune
}

// Name returns the source key
func (s *CSVSource) Name() string { return s.key }

// Load reads one record per row. Every value is a string.
func (s *CSVSource) Load(ctx context.Context) ([]models.Record, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", s.key, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = s.Delimiter
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("source %q: failed to read header: %w", s.key, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var records []models.Record
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", s.key, err)
		}

		rec := make(models.Record, len(header))
		for i, field := range header {
			rec[field] = row[i]
		}
		records = append(records, rec)
	}
	return records, nil
}

// JSONSource reads a file holding an array of objects
type JSONSource struct {
	key  string
	Path string
}

// Name returns the source key
func (s *JSONSource) Name() string { return s.key }

// Load decodes one record per array element
func (s *JSONSource) Load(ctx context.Context) ([]models.Record, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", s.key, err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("source %q: failed to parse %s: %w", s.key, s.Path, err)
	}

	records := make([]models.Record, len(raw))
	for i, obj := range raw {
		records[i] = models.Record(obj)
	}
	return records, nil
}
