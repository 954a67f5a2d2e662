package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Summary struct {
	Cases     int64 `json:"cases"`
	Deaths    int64 `json:"deaths"`
	Recovered int64 `json:"recovered"`
	// Updated is epoch milliseconds.
	Updated int64 `json:"updated"`
}

// Field names a numeric column of a country row. The string value is the JSON key.
type Field string

const (
	// FieldCountry is the name column. It is never stored in CountryRow.Counts.
	FieldCountry Field = "country"

	FieldCases           Field = "cases"
	FieldTodayCases      Field = "todayCases"
	FieldDeaths          Field = "deaths"
	FieldTodayDeaths     Field = "todayDeaths"
	FieldRecovered       Field = "recovered"
	FieldCritical        Field = "critical"
	FieldYesterdayCases  Field = "yesterdayCases"
	FieldYesterdayDeaths Field = "yesterdayDeaths"
)

// CountFields is the canonical field order used when encoding rows.
var CountFields = []Field{
	FieldCases,
	FieldTodayCases,
	FieldDeaths,
	FieldTodayDeaths,
	FieldRecovered,
	FieldCritical,
	FieldYesterdayCases,
	FieldYesterdayDeaths,
}

// CountryRow is one country's counters. A field missing from Counts was not
// reported by any table; a field mapped to nil was reported but unreadable.
// Both mean "unknown" to consumers.
type CountryRow struct {
	Country string
	Counts  map[Field]*int64
}

func NewCountryRow(country string) CountryRow {
	return CountryRow{Country: country, Counts: map[Field]*int64{}}
}

func (r *CountryRow) Set(f Field, v *int64) {
	if r.Counts == nil {
		r.Counts = map[Field]*int64{}
	}
	r.Counts[f] = v
}

func (r CountryRow) Has(f Field) bool {
	_, ok := r.Counts[f]
	return ok
}

// Count returns the field value and whether it is known.
func (r CountryRow) Count(f Field) (int64, bool) {
	v := r.Counts[f]
	if v == nil {
		return 0, false
	}
	return *v, true
}

func (r CountryRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	name, err := json.Marshal(r.Country)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"country":`)
	buf.Write(name)
	for _, f := range CountFields {
		v, ok := r.Counts[f]
		if !ok {
			continue
		}
		fmt.Fprintf(&buf, `,"%s":`, f)
		if v == nil {
			buf.WriteString("null")
		} else {
			fmt.Fprintf(&buf, "%d", *v)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *CountryRow) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	row := NewCountryRow("")
	if name, ok := raw["country"]; ok {
		if err := json.Unmarshal(name, &row.Country); err != nil {
			return fmt.Errorf("country: %w", err)
		}
	}
	for _, f := range CountFields {
		msg, ok := raw[string(f)]
		if !ok {
			continue
		}
		var v *int64
		if err := json.Unmarshal(msg, &v); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		row.Counts[f] = v
	}
	*r = row
	return nil
}

// Int returns a pointer to v.
func Int(v int64) *int64 { return &v }

type HistorySample struct {
	Date      string `json:"date"`
	Confirmed *int64 `json:"confirmed"`
	Deaths    *int64 `json:"deaths"`
	Recovered *int64 `json:"recovered"`
}

// History maps a country name to its raw time series. Values are kept as
// received so the stored document matches the upstream feed.
type History map[string]json.RawMessage

// Series decodes the time series stored for country.
func (h History) Series(country string) ([]HistorySample, bool, error) {
	raw, ok := h[country]
	if !ok {
		return nil, false, nil
	}
	var samples []HistorySample
	if err := json.Unmarshal(raw, &samples); err != nil {
		return nil, true, fmt.Errorf("decode series for %q: %w", country, err)
	}
	return samples, true, nil
}

// Dashboard is the document served to the front-end.
type Dashboard struct {
	Summary   *Summary        `json:"summary"`
	Countries []CountryRow    `json:"countries"`
	News      json.RawMessage `json:"news"`
	History   History         `json:"history"`
}
