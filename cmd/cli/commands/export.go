package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"covid19-tracker/internal/ioformats"
	"covid19-tracker/internal/models"
	"covid19-tracker/internal/store"
)

var (
	exportFormat string
	exportOutput string
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "csv or ndjson; defaults to the output extension, then ndjson")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [--format csv|ndjson] [--output file]",
	Short: "Writes the stored country list as CSV or NDJSON.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := exportFormatFor(exportFormat, exportOutput)
		if err != nil {
			return err
		}

		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		var rows []models.CountryRow
		ok, err := e.store.Get(cmd.Context(), store.KeyCountries, &rows)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no countries stored yet, run fetch countries first")
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := ioformats.WriteCountries(w, format, rows); err != nil {
			return err
		}
		e.log.Info("exported countries", "rows", len(rows), "format", format)
		return nil
	},
}

func exportFormatFor(flag, output string) (ioformats.Format, error) {
	if flag != "" {
		return ioformats.ParseFormat(flag)
	}
	if f := ioformats.FormatFromPath(output); f != "" {
		return f, nil
	}
	return ioformats.FormatNDJSON, nil
}
