package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dinamifin/internal/history"
	"dinamifin/internal/report"
)

var historyCmd = &cobra.Command{
	Use:       "history <series>",
	Short:     "Monthly history of one series",
	Long:      "Prints a series as a table. Ledger series (income, expense, saving, investment) list every month of the period; goal series (expense_goal, saving_goal, investment_goal) list only months with data.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: seriesNames(),
	RunE:      runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func seriesNames() []string {
	all := history.AllSeries()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name
	}
	return names
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.history.Series(cmd.Context(), flagUser, args[0], flagPeriod)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(report.RenderTitle(fmt.Sprintf("%s  user %d  last %s", res.Series.Name, flagUser, res.Period)))
	fmt.Println()
	if len(res.Totals) == 0 && len(res.Goals) == 0 {
		fmt.Println("  No data for the selected period.")
		return nil
	}
	fmt.Print(report.RenderTable(report.SeriesTable(res)))
	return nil
}
