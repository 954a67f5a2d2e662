package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"covid19-tracker/internal/stats"
)

func init() {
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:       "fetch [summary|countries|history|all]",
	Short:     "Fetches from the configured sources and stores the result.",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"summary", "countries", "history", "all"},
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "all"
		if len(args) == 1 {
			target = args[0]
		}

		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		return runFetch(cmd.Context(), e.svc, target, func(format string, a ...any) {
			fmt.Fprintf(cmd.OutOrStdout(), format, a...)
		})
	},
}

func runFetch(ctx context.Context, svc *stats.Service, target string, printf func(string, ...any)) error {
	switch target {
	case "summary":
		s, err := svc.FetchSummary(ctx)
		if err != nil {
			return err
		}
		printf("summary: %d cases, %d deaths, %d recovered\n", s.Cases, s.Deaths, s.Recovered)
	case "countries":
		rows, err := svc.FetchCountries(ctx)
		if err != nil {
			return err
		}
		printf("countries: %d rows\n", len(rows))
	case "history":
		h, err := svc.FetchHistory(ctx)
		if err != nil {
			return err
		}
		printf("history: %d series\n", len(h))
	case "all":
		if err := svc.FetchAll(ctx); err != nil {
			return err
		}
		printf("all sources fetched\n")
	default:
		return fmt.Errorf("unknown fetch target %q", target)
	}
	return nil
}
