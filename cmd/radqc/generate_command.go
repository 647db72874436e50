package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-radqc/infrastructure/ingest"
	"github.com/ahrav/go-radqc/internal/testutils"
)

func newGenerateCommand() *cobra.Command {
	defaults := testutils.DefaultDatasetConfig()
	cfg := defaults

	var (
		outFlag          string
		equipmentFlag    string
		subspecialtyFlag string
		seedFlag         int64
	)

	cmd := &cobra.Command{
		Use:         "generate",
		Short:       "Generate a synthetic review set for demos and testing",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				dataset *testutils.Dataset
				seed    int64
				err     error
			)
			if cmd.Flags().Changed("seed") {
				seed = seedFlag
				dataset, err = testutils.GenerateDataset(cfg, seed)
			} else {
				dataset, seed, err = testutils.GenerateDatasetDefault(cfg)
			}
			if err != nil {
				return err
			}

			if err := writeFile(outFlag, func(w io.Writer) error {
				return ingest.WriteReviews(w, dataset.Reviews)
			}); err != nil {
				return err
			}
			if equipmentFlag != "" {
				if err := writeFile(equipmentFlag, func(w io.Writer) error {
					return ingest.WriteEquipmentTable(w, dataset.Profiles)
				}); err != nil {
					return err
				}
			}
			if subspecialtyFlag != "" {
				if err := writeFile(subspecialtyFlag, func(w io.Writer) error {
					return ingest.WriteSubspecialtyTable(w, dataset.Profiles)
				}); err != nil {
					return err
				}
			}

			low := 0
			for _, isLow := range dataset.LowQuality {
				if isLow {
					low++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d reviews for %d providers (%d low quality, seed %d) to %s\n",
				len(dataset.Reviews), cfg.Providers, low, seed, outFlag)
			return nil
		},
	}

	cmd.Flags().StringVar(&outFlag, "out", "reviews.csv", "Output path for the review CSV")
	cmd.Flags().StringVar(&equipmentFlag, "equipment-out", "", "Optional output path for the equipment CSV")
	cmd.Flags().StringVar(&subspecialtyFlag, "subspecialties-out", "", "Optional output path for the subspecialty CSV")
	cmd.Flags().IntVar(&cfg.Providers, "providers", defaults.Providers, "Number of providers")
	cmd.Flags().IntVar(&cfg.MinExams, "min-exams", defaults.MinExams, "Minimum exams per provider")
	cmd.Flags().IntVar(&cfg.MaxExams, "max-exams", defaults.MaxExams, "Maximum exams per provider")
	cmd.Flags().Float64Var(&cfg.LowQualityFraction, "low-quality", defaults.LowQualityFraction, "Fraction of providers drawn from the low quality tier")
	cmd.Flags().Float64Var(&cfg.DuplicateFraction, "duplicates", defaults.DuplicateFraction, "Fraction of exams reviewed twice")
	cmd.Flags().Float64Var(&cfg.ConflictFraction, "conflicts", defaults.ConflictFraction, "Fraction of duplicate reviews with a conflicting attribute")
	cmd.Flags().Float64Var(&cfg.MissingScoreFraction, "missing-scores", defaults.MissingScoreFraction, "Fraction of subjective scores left empty")
	cmd.Flags().Float64Var(&cfg.Separation, "separation", defaults.Separation, "Error rate separation between the quality tiers")
	cmd.Flags().Int64Var(&seedFlag, "seed", 0, "Generator seed; random when omitted")

	return cmd
}

// writeFile creates the target file and hands it to the write callback,
// reporting create, write, and close failures with the path attached.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
