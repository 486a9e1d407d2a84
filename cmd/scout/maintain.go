package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scout/internal/config"
	"scout/internal/logging"
	"scout/internal/reflection"
)

const timeRound = 100 * time.Millisecond

func newMaintainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "maintain",
		Short: "Run memory maintenance and cross-session analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			app, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}

			report, err := app.memory.PerformMaintenance(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Episodes consolidated: %d\nFacts decayed: %d\nFacts merged: %d\nStrategies extracted: %d\n",
				report.EpisodesConsolidated, report.FactsDecayed, report.FactsMerged, report.StrategiesExtracted)

			reflector := reflection.NewMemoryReflector(app.memory, logging.NewMemoryLogger("reflection"))
			analysis, err := reflector.Analyze(ctx)
			if err != nil {
				return err
			}
			if len(analysis.Insights) > 0 {
				fmt.Fprintln(out, "\nInsights:")
				for _, insight := range analysis.Insights {
					fmt.Fprintf(out, "- [%s] %s\n", insight.Kind, insight.Summary)
				}
			}
			if len(analysis.KnowledgeGaps) > 0 {
				fmt.Fprintln(out, "\nKnowledge gaps:")
				for _, gap := range analysis.KnowledgeGaps {
					fmt.Fprintf(out, "- %s\n", gap)
				}
			}
			return nil
		},
	}
}
