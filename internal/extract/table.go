package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"covid19-tracker/internal/models"
	"covid19-tracker/internal/parser"
	"covid19-tracker/internal/telemetry"
)

var (
	ErrTableNotFound = errors.New("country table not found")
	ErrNoColumns     = errors.New("country table header has no columns")
	ErrShortRow      = errors.New("country table row is shorter than its header")
)

const (
	TodayTableSelector     = "table#main_table_countries_today"
	YesterdayTableSelector = "table#main_table_countries_yesterday"

	rowSelector = "tr:not(.total_row):not(.total_row_world)"
)

// Column maps a cell position to a row field. Header is the normalized text
// the column's header is expected to contain; an empty Header skips the check.
type Column struct {
	Index  int
	Field  models.Field
	Header string
}

type Layout []Column

var TodayLayout = Layout{
	{Index: 1, Field: models.FieldCountry, Header: "country"},
	{Index: 2, Field: models.FieldCases, Header: "totalcases"},
	{Index: 3, Field: models.FieldTodayCases, Header: "newcases"},
	{Index: 4, Field: models.FieldDeaths, Header: "totaldeaths"},
	{Index: 5, Field: models.FieldTodayDeaths, Header: "newdeaths"},
	{Index: 6, Field: models.FieldRecovered, Header: "totalrecovered"},
	{Index: 8, Field: models.FieldCritical, Header: "critical"},
}

var YesterdayLayout = Layout{
	{Index: 1, Field: models.FieldCountry, Header: "country"},
	{Index: 3, Field: models.FieldYesterdayCases, Header: "newcases"},
	{Index: 5, Field: models.FieldYesterdayDeaths, Header: "newdeaths"},
}

func headerCells(table *goquery.Selection) *goquery.Selection {
	return table.ChildrenFiltered("thead").ChildrenFiltered("tr").ChildrenFiltered("th")
}

// ColumnCount is the number of header cells in table.
func ColumnCount(table *goquery.Selection) int {
	return headerCells(table).Length()
}

// CheckHeaders reports a warning for every layout column whose header text
// does not match. The positional mapping is used regardless.
func CheckHeaders(table *goquery.Selection, layout Layout, tel telemetry.API) int {
	headers := headerCells(table)
	mismatches := 0
	for _, col := range layout {
		if col.Header == "" {
			continue
		}
		got := ""
		if col.Index < headers.Length() {
			got = parser.NormalizeHeader(headers.Eq(col.Index).Text())
		}
		if !strings.Contains(got, col.Header) {
			mismatches++
			tel.ReportWarning(
				"countries.header",
				fmt.Sprintf("column %d (%s) has header %q, expected %q", col.Index, col.Field, got, col.Header),
			)
		}
	}
	return mismatches
}

// ParseTable walks the body cells of table in strides of columns, skipping
// total rows, and builds one row per stride from layout.
func ParseTable(table *goquery.Selection, columns int, layout Layout) ([]models.CountryRow, error) {
	if columns <= 0 {
		return nil, ErrNoColumns
	}

	cells := table.ChildrenFiltered("tbody").ChildrenFiltered(rowSelector).ChildrenFiltered("td")
	n := cells.Length()

	rows := make([]models.CountryRow, 0, n/columns)
	for i := 0; i < n; i += columns {
		row := models.NewCountryRow("")
		for _, col := range layout {
			idx := i + col.Index
			if idx >= n {
				return nil, fmt.Errorf("%w: row at cell %d needs column %d, only %d cells", ErrShortRow, i, col.Index, n)
			}
			cell := parser.NewCell(cells.Get(idx))
			if col.Field == models.FieldCountry {
				row.Country = parser.CountryName(cell)
				continue
			}
			row.Set(col.Field, parser.CellCount(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Tables extracts the today and yesterday country tables. Both are read
// with the today table's column count.
func Tables(doc *goquery.Document, tel telemetry.API) (today, yesterday []models.CountryRow, err error) {
	todayTable := doc.Find(TodayTableSelector).First()
	if todayTable.Length() == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrTableNotFound, TodayTableSelector)
	}
	yesterdayTable := doc.Find(YesterdayTableSelector).First()
	if yesterdayTable.Length() == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrTableNotFound, YesterdayTableSelector)
	}

	columns := ColumnCount(todayTable)
	if columns == 0 {
		return nil, nil, ErrNoColumns
	}
	CheckHeaders(todayTable, TodayLayout, tel)
	CheckHeaders(yesterdayTable, YesterdayLayout, tel)

	today, err = ParseTable(todayTable, columns, TodayLayout)
	if err != nil {
		return nil, nil, fmt.Errorf("today: %w", err)
	}
	yesterday, err = ParseTable(yesterdayTable, columns, YesterdayLayout)
	if err != nil {
		return nil, nil, fmt.Errorf("yesterday: %w", err)
	}
	return today, yesterday, nil
}

// Countries extracts both tables, merges them by country and sorts the
// result by cases, largest first.
func Countries(doc *goquery.Document, tel telemetry.API) ([]models.CountryRow, error) {
	today, yesterday, err := Tables(doc, tel)
	if err != nil {
		return nil, err
	}
	merged := Merge(today, yesterday)
	SortByCases(merged)
	return merged, nil
}
