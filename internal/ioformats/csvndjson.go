package ioformats

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"covid19-tracker/internal/models"
)

type Format string

const (
	FormatCSV    Format = "csv"
	FormatNDJSON Format = "ndjson"
)

var ErrUnknownFormat = errors.New("unknown format")

// ParseFormat accepts csv, ndjson and jsonl, in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "ndjson", "jsonl":
		return FormatNDJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath picks a format from the file extension, or "" if it is not one we know.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".ndjson", ".jsonl":
		return FormatNDJSON
	}
	return ""
}

// WriteCountries writes rows to w in the given format.
func WriteCountries(w io.Writer, format Format, rows []models.CountryRow) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatNDJSON:
		return WriteNDJSON(w, rows)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// WriteCSV writes a header of the country column and every count field, then
// one record per row. Unknown values are empty cells.
func WriteCSV(w io.Writer, rows []models.CountryRow) error {
	cw := csv.NewWriter(w)
	header := []string{string(models.FieldCountry)}
	for _, f := range models.CountFields {
		header = append(header, string(f))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		rec := []string{row.Country}
		for _, f := range models.CountFields {
			v, ok := row.Count(f)
			if !ok {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, strconv.FormatInt(v, 10))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteNDJSON writes one JSON object per row.
func WriteNDJSON(w io.Writer, rows []models.CountryRow) error {
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

// ReadCountries reads a file written by WriteCSV or WriteNDJSON. The format
// comes from the extension; if it cannot be determined, CSV is tried first.
func ReadCountries(path string) ([]models.CountryRow, error) {
	switch FormatFromPath(path) {
	case FormatCSV:
		return readCSV(path)
	case FormatNDJSON:
		return readNDJSON(path)
	default:
		if rows, err := readCSV(path); err == nil && len(rows) > 0 {
			return rows, nil
		}
		return readNDJSON(path)
	}
}

func readCSV(path string) ([]models.CountryRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("empty csv")
	}

	// map header names to fields; unknown columns are ignored
	countryCol := -1
	cols := map[int]models.Field{}
	for i, h := range records[0] {
		name := strings.TrimSpace(h)
		if strings.EqualFold(name, string(models.FieldCountry)) {
			countryCol = i
			continue
		}
		for _, f := range models.CountFields {
			if strings.EqualFold(name, string(f)) {
				cols[i] = f
			}
		}
	}
	if countryCol == -1 {
		return nil, errors.New("csv must contain a 'country' header column")
	}

	var out []models.CountryRow
	for n, rec := range records[1:] {
		if countryCol >= len(rec) {
			continue
		}
		row := models.NewCountryRow(strings.TrimSpace(rec[countryCol]))
		for i, f := range cols {
			if i >= len(rec) {
				continue
			}
			cell := strings.TrimSpace(rec[i])
			if cell == "" {
				row.Set(f, nil)
				continue
			}
			v, err := strconv.ParseInt(cell, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d, %s: %w", n+2, f, err)
			}
			row.Set(f, models.Int(v))
		}
		out = append(out, row)
	}
	return out, nil
}

func readNDJSON(path string) ([]models.CountryRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []models.CountryRow
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var row models.CountryRow
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("ndjson: %w", err)
		}
		out = append(out, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("no countries found in ndjson")
	}
	return out, nil
}
