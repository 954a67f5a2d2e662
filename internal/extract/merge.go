package extract

import (
	"cmp"
	"slices"

	"covid19-tracker/internal/models"
)

// keyed is a country-name index that remembers first-seen order. A repeated
// name keeps its first position and takes the later row.
type keyed struct {
	order []string
	rows  map[string]models.CountryRow
}

func keyBy(rows []models.CountryRow) keyed {
	k := keyed{rows: make(map[string]models.CountryRow, len(rows))}
	for _, row := range rows {
		if _, seen := k.rows[row.Country]; !seen {
			k.order = append(k.order, row.Country)
		}
		k.rows[row.Country] = row
	}
	return k
}

func clone(row models.CountryRow) models.CountryRow {
	out := models.NewCountryRow(row.Country)
	for f, v := range row.Counts {
		out.Counts[f] = v
	}
	return out
}

// combine adds the fields of yesterday that today does not hold. A field
// already present in today is never replaced, even when it is null.
func combine(today, yesterday models.CountryRow) models.CountryRow {
	out := clone(today)
	for f, v := range yesterday.Counts {
		if out.Has(f) {
			continue
		}
		out.Set(f, v)
	}
	return out
}

// Merge joins today's and yesterday's rows by exact country name. Countries
// found in only one table keep only that table's fields. The result lists
// today's countries first, then countries only seen yesterday.
func Merge(today, yesterday []models.CountryRow) []models.CountryRow {
	t := keyBy(today)
	y := keyBy(yesterday)

	out := make([]models.CountryRow, 0, len(t.order)+len(y.order))
	for _, name := range t.order {
		row := t.rows[name]
		if prev, ok := y.rows[name]; ok {
			out = append(out, combine(row, prev))
			continue
		}
		out = append(out, clone(row))
	}
	for _, name := range y.order {
		if _, ok := t.rows[name]; ok {
			continue
		}
		out = append(out, clone(y.rows[name]))
	}
	return out
}

// Unmatched lists the names found in only one of the two tables.
func Unmatched(today, yesterday []models.CountryRow) (todayOnly, yesterdayOnly []string) {
	t := keyBy(today)
	y := keyBy(yesterday)
	for _, name := range t.order {
		if _, ok := y.rows[name]; !ok {
			todayOnly = append(todayOnly, name)
		}
	}
	for _, name := range y.order {
		if _, ok := t.rows[name]; !ok {
			yesterdayOnly = append(yesterdayOnly, name)
		}
	}
	return todayOnly, yesterdayOnly
}

// SortByCases orders rows by cases, largest first. Rows with equal cases
// keep their relative order; rows with unknown cases go last.
func SortByCases(rows []models.CountryRow) {
	slices.SortStableFunc(rows, func(a, b models.CountryRow) int {
		av, aok := a.Count(models.FieldCases)
		bv, bok := b.Count(models.FieldCases)
		switch {
		case aok && bok:
			return cmp.Compare(bv, av)
		case aok:
			return -1
		case bok:
			return 1
		default:
			return 0
		}
	})
}
