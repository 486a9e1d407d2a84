package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"scout/internal/agent/ports"
	"scout/internal/agent/types"
	"scout/internal/config"
)

func newSessionsCmd() *cobra.Command {
	var (
		status string
		output string
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List past research sessions",
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

			sessions, err := app.memory.Sessions.ListSessions(ctx, ports.SessionFilter{
				Status: types.SessionStatus(status),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "no sessions recorded")
				return nil
			}

			if output == "yaml" {
				encoded, err := yaml.Marshal(sessions)
				if err != nil {
					return err
				}
				fmt.Fprint(out, string(encoded))
				return nil
			}
			for _, session := range sessions {
				fmt.Fprintf(out, "%s  %-10s  %s  %s\n",
					session.CreatedAt.Format("2006-01-02 15:04"), session.Status, session.ID, session.Topic)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status: active, completed, failed, cancelled")
	cmd.Flags().StringVar(&output, "output", "table", "output format: table or yaml")
	return cmd
}
