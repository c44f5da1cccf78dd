package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dinamifin/internal/report"
	"dinamifin/internal/services"
)

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Goal commands",
}

var goalsCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Goal in force per goal kind",
	Args:  cobra.NoArgs,
	RunE:  runGoalsCurrent,
}

func init() {
	goalsCmd.AddCommand(goalsCurrentCmd)
	rootCmd.AddCommand(goalsCmd)
}

func runGoalsCurrent(cmd *cobra.Command, _ []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	current, err := services.NewGoalService(s.backend.Store, nil, nil, s.logger).Current(cmd.Context(), flagUser)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(report.RenderTable(report.GoalsTable(current)))
	return nil
}
