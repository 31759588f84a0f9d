package cmd

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/kartoza/lab-test-optimizer/internal/dataset"
	"github.com/spf13/cobra"
)

func (a *app) newGenerateCommand() *cobra.Command {
	var (
		samples  int
		seed     int64
		output   string
		seedFile string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic symptom dataset",
		Long: `Generate a labelled symptom dataset from the disease catalogue.

Each row picks a disease at random and between one and all of its symptoms,
written as a symptoms,disease CSV. Pass --seed for a reproducible dataset.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if samples < 1 {
				return fmt.Errorf("--samples must be positive, got %d", samples)
			}
			catalogue, err := loadSeed(seedFile)
			if err != nil {
				return err
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			rows := dataset.Generate(catalogue, samples, rand.New(rand.NewSource(seed)))

			var w io.Writer = cmd.OutOrStdout()
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			if err := dataset.WriteCSV(w, rows); err != nil {
				return fmt.Errorf("write dataset: %w", err)
			}

			a.logger.Info("dataset generated", "path", output, "samples", samples, "seed", seed, "diseases", catalogue.Names())
			return nil
		},
	}

	cmd.Flags().IntVarP(&samples, "samples", "n", 1000, "number of rows")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed, 0 picks one from the clock")
	cmd.Flags().StringVarP(&output, "output", "o", "symptoms_data.csv", "output CSV path, - for stdout")
	cmd.Flags().StringVar(&seedFile, "seed-file", "", "disease catalogue YAML (default is the built-in catalogue)")

	return cmd
}

func loadSeed(path string) (*dataset.Seed, error) {
	if path == "" {
		return dataset.DefaultSeed()
	}
	return dataset.LoadSeedFile(path)
}
