package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"covid19-tracker/internal/ioformats"
	"covid19-tracker/internal/models"
	"covid19-tracker/internal/store"
)

var (
	showLimit int
	showInput string
)

func init() {
	showCountriesCmd.Flags().IntVar(&showLimit, "limit", 20, "rows to show, 0 for all")
	showCountriesCmd.Flags().StringVar(&showInput, "input", "", "read countries from an exported csv or ndjson file instead of the store")
	showCmd.AddCommand(showSummaryCmd, showCountriesCmd)
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints stored data as tables.",
}

var showSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Prints the stored headline counters.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		var s models.Summary
		ok, err := e.store.Get(cmd.Context(), store.KeySummary, &s)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no summary stored yet, run fetch summary first")
		}
		renderSummary(cmd.OutOrStdout(), s)
		return nil
	},
}

var showCountriesCmd = &cobra.Command{
	Use:   "countries [--limit n] [--input file]",
	Short: "Prints the stored country list, largest first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var rows []models.CountryRow
		if showInput != "" {
			var err error
			rows, err = ioformats.ReadCountries(showInput)
			if err != nil {
				return err
			}
		} else {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.Close()

			ok, err := e.store.Get(cmd.Context(), store.KeyCountries, &rows)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no countries stored yet, run fetch countries first")
			}
		}
		renderCountries(cmd.OutOrStdout(), rows, showLimit)
		return nil
	},
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func renderSummary(w io.Writer, s models.Summary) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Cases", "Deaths", "Recovered", "Updated"})
	t.AppendRow(table.Row{s.Cases, s.Deaths, s.Recovered, time.UnixMilli(s.Updated).UTC().Format(time.RFC3339)})
	t.Render()
}

var countryColumns = []models.Field{
	models.FieldCases,
	models.FieldTodayCases,
	models.FieldDeaths,
	models.FieldTodayDeaths,
	models.FieldRecovered,
	models.FieldCritical,
	models.FieldYesterdayCases,
	models.FieldYesterdayDeaths,
}

func renderCountries(w io.Writer, rows []models.CountryRow, limit int) {
	t := newTable(w)

	header := table.Row{"#", "Country"}
	configs := []table.ColumnConfig{}
	for i, f := range countryColumns {
		header = append(header, string(f))
		configs = append(configs, table.ColumnConfig{Number: i + 3, Align: text.AlignRight})
	}
	t.AppendHeader(header)
	t.SetColumnConfigs(configs)

	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	for i, row := range rows {
		r := table.Row{i + 1, row.Country}
		for _, f := range countryColumns {
			v, ok := row.Count(f)
			if !ok {
				r = append(r, "-")
				continue
			}
			r = append(r, v)
		}
		t.AppendRow(r)
	}
	t.Render()
}
