package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"barangay-helpdesk/internal/domain"
)

// Column headers the dataset must carry.
const (
	ColumnQuery    = "User Query"
	ColumnIntent   = "Intent"
	ColumnResponse = "Response"
)

// Parse reads a CSV dataset whose first row names its columns. Quoted fields
// may contain commas, newlines and doubled quotes. Rows missing a query,
// intent or response are skipped.
func Parse(r io.Reader) ([]domain.DatasetEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset: empty resource")
		}
		return nil, fmt.Errorf("dataset: read header: %w", err)
	}
	qi, ii, ri, err := columnIndexes(header)
	if err != nil {
		return nil, err
	}

	var entries []domain.DatasetEntry
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, fmt.Errorf("dataset: read row: %w", err)
		}
		e := domain.DatasetEntry{
			Query:    field(rec, qi),
			Intent:   field(rec, ii),
			Response: field(rec, ri),
		}
		if e.Query == "" || e.Intent == "" || e.Response == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func columnIndexes(header []string) (query, intent, response int, err error) {
	query, intent, response = -1, -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case ColumnQuery:
			query = i
		case ColumnIntent:
			intent = i
		case ColumnResponse:
			response = i
		}
	}
	if query < 0 || intent < 0 || response < 0 {
		return 0, 0, 0, fmt.Errorf("dataset: header must name %q, %q and %q", ColumnQuery, ColumnIntent, ColumnResponse)
	}
	return query, intent, response, nil
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
