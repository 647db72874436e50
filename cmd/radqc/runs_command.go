package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-radqc/infrastructure/report"
	"github.com/ahrav/go-radqc/infrastructure/storage"
)

func newRunsCommand(cctx *commandContext) *cobra.Command {
	var (
		dbFlag    string
		limitFlag int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig(cmd.Context())
			if err != nil {
				return err
			}

			store, err := storage.Open(firstNonEmpty(dbFlag, cfg.DatabasePath))
			if err != nil {
				return fmt.Errorf("open result store: %w", err)
			}
			defer store.Close()

			infos, err := store.ListRuns(cmd.Context(), limitFlag)
			if err != nil {
				return err
			}
			return report.WriteRunList(cmd.OutOrStdout(), infos)
		},
	}

	cmd.Flags().StringVar(&dbFlag, "db", "", "Path to the result database")
	cmd.Flags().IntVar(&limitFlag, "limit", 0, "Maximum runs to list; zero lists all")

	return cmd
}
