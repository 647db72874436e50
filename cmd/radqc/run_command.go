package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-radqc/infrastructure/ingest"
	"github.com/ahrav/go-radqc/infrastructure/report"
	"github.com/ahrav/go-radqc/infrastructure/storage"
	"github.com/ahrav/go-radqc/internal/application"
	"github.com/ahrav/go-radqc/internal/domain"
	"github.com/ahrav/go-radqc/pkg/logger"
)

func newRunCommand(cctx *commandContext) *cobra.Command {
	var (
		reviewsFlag      string
		equipmentFlag    string
		subspecialtyFlag string
		pipelineFlag     string
		dbFlag           string
		seedFlag         int64
		formatFlag       string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Classify providers from a review export and persist the run",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := cctx.ensureConfig(signalCtx)
			if err != nil {
				return err
			}

			log, err := logger.New(logger.Options{
				Level:  cfg.LogLevel,
				Format: cfg.LogFormat,
				Output: cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			reviewsPath := firstNonEmpty(reviewsFlag, cfg.ReviewsPath)
			if reviewsPath == "" {
				return errors.New("a reviews file is required; pass --reviews or set reviews_path in the configuration")
			}
			equipmentPath := firstNonEmpty(equipmentFlag, cfg.EquipmentPath)
			subspecialtyPath := firstNonEmpty(subspecialtyFlag, cfg.SubspecialtyPath)
			pipelinePath := firstNonEmpty(pipelineFlag, cfg.PipelinePath)

			format := formatFlag
			if !cmd.Flags().Changed("format") && cfg.ReportFormat != "" {
				format = cfg.ReportFormat
			}
			if format != "table" && format != "csv" {
				return fmt.Errorf("unknown report format %q, expected table or csv", format)
			}

			seed := cfg.Seed
			if cmd.Flags().Changed("seed") {
				seed = seedFlag
			}

			pipeline, err := buildPipeline(signalCtx, pipelinePath, seed, cmd.Flags().Changed("seed"))
			if err != nil {
				return err
			}

			source, err := ingest.NewCSVReviewSource(reviewsPath)
			if err != nil {
				return err
			}

			store, err := storage.Open(firstNonEmpty(dbFlag, cfg.DatabasePath))
			if err != nil {
				return fmt.Errorf("open result store: %w", err)
			}
			defer store.Close()

			runner, err := application.NewRunner(pipeline, source, store, nil, log)
			if err != nil {
				return err
			}

			// Profile tables only feed the report, so they load while the
			// pipeline executes.
			var (
				run      *domain.Run
				profiles []domain.ProviderProfile
			)
			g, gctx := errgroup.WithContext(signalCtx)
			g.Go(func() error {
				result, err := runner.Run(gctx)
				if err != nil {
					return err
				}
				run = result
				return nil
			})
			if equipmentPath != "" || subspecialtyPath != "" {
				profileSource := ingest.NewCSVProfileSource(equipmentPath, subspecialtyPath)
				g.Go(func() error {
					loaded, err := profileSource.Profiles(gctx)
					if err != nil {
						return fmt.Errorf("load profiles: %w", err)
					}
					profiles = loaded
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if format == "csv" {
				return report.WriteSummaryCSV(cmd.OutOrStdout(), run)
			}
			return report.Render(cmd.OutOrStdout(), run, profiles)
		},
	}

	cmd.Flags().StringVar(&reviewsFlag, "reviews", "", "Path to the exam review CSV")
	cmd.Flags().StringVar(&equipmentFlag, "equipment", "", "Path to the optional equipment CSV")
	cmd.Flags().StringVar(&subspecialtyFlag, "subspecialties", "", "Path to the optional subspecialty CSV")
	cmd.Flags().StringVar(&pipelineFlag, "pipeline", "", "Path to a pipeline YAML definition")
	cmd.Flags().StringVar(&dbFlag, "db", "", "Path to the result database")
	cmd.Flags().Int64Var(&seedFlag, "seed", 0, "Clustering seed for the built-in pipeline")
	cmd.Flags().StringVar(&formatFlag, "format", "table", "Report format: table or csv")

	return cmd
}

// buildPipeline compiles the YAML definition when one is configured and
// falls back to the built-in pipeline otherwise. An explicit seed cannot
// be combined with a pipeline file, where the seed is a stage parameter.
func buildPipeline(ctx context.Context, path string, seed int64, seedSet bool) (*application.Pipeline, error) {
	if path == "" {
		return application.DefaultPipelineWithSeed(seed)
	}
	if seedSet {
		return nil, errors.New("--seed applies to the built-in pipeline; set the seed in the pipeline file instead")
	}

	loader, err := application.NewPipelineLoader(application.NewStageRegistry())
	if err != nil {
		return nil, err
	}
	pipeline, err := loader.LoadFromFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load pipeline %s: %w", path, err)
	}
	return pipeline, nil
}
