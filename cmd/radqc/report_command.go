package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-radqc/infrastructure/ingest"
	"github.com/ahrav/go-radqc/infrastructure/report"
	"github.com/ahrav/go-radqc/infrastructure/storage"
	"github.com/ahrav/go-radqc/internal/domain"
)

func newReportCommand(cctx *commandContext) *cobra.Command {
	var (
		dbFlag           string
		runFlag          string
		equipmentFlag    string
		subspecialtyFlag string
		formatFlag       string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Re-render a stored run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig(cmd.Context())
			if err != nil {
				return err
			}

			format := formatFlag
			if !cmd.Flags().Changed("format") && cfg.ReportFormat != "" {
				format = cfg.ReportFormat
			}
			if format != "table" && format != "csv" {
				return fmt.Errorf("unknown report format %q, expected table or csv", format)
			}

			store, err := storage.Open(firstNonEmpty(dbFlag, cfg.DatabasePath))
			if err != nil {
				return fmt.Errorf("open result store: %w", err)
			}
			defer store.Close()

			var run *domain.Run
			if runFlag != "" {
				run, err = store.GetRun(cmd.Context(), runFlag)
			} else {
				run, err = store.LatestRun(cmd.Context())
			}
			if err != nil {
				return err
			}

			var profiles []domain.ProviderProfile
			equipmentPath := firstNonEmpty(equipmentFlag, cfg.EquipmentPath)
			subspecialtyPath := firstNonEmpty(subspecialtyFlag, cfg.SubspecialtyPath)
			if equipmentPath != "" || subspecialtyPath != "" {
				profiles, err = ingest.NewCSVProfileSource(equipmentPath, subspecialtyPath).Profiles(cmd.Context())
				if err != nil {
					return fmt.Errorf("load profiles: %w", err)
				}
			}

			if format == "csv" {
				return report.WriteSummaryCSV(cmd.OutOrStdout(), run)
			}
			return report.Render(cmd.OutOrStdout(), run, profiles)
		},
	}

	cmd.Flags().StringVar(&dbFlag, "db", "", "Path to the result database")
	cmd.Flags().StringVar(&runFlag, "run", "", "Run identifier; latest when omitted")
	cmd.Flags().StringVar(&equipmentFlag, "equipment", "", "Path to the optional equipment CSV")
	cmd.Flags().StringVar(&subspecialtyFlag, "subspecialties", "", "Path to the optional subspecialty CSV")
	cmd.Flags().StringVar(&formatFlag, "format", "table", "Report format: table or csv")

	return cmd
}
