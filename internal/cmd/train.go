package cmd

import (
	"fmt"

	"github.com/kartoza/lab-test-optimizer/internal/dataset"
	"github.com/kartoza/lab-test-optimizer/internal/trainer"
	"github.com/spf13/cobra"
)

func (a *app) newTrainCommand() *cobra.Command {
	opts := trainer.DefaultOptions()
	var (
		data     string
		output   string
		seedFile string
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the classifier and write the artifact",
		Long: `Train the symptom classifier on a symptoms,disease CSV and write an
artifact bundling it with the catalogue's disease to test mapping.

A fraction of the rows is held out to measure accuracy, which is stored in
the artifact metadata.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = a.cfg.Artifact.Path
			}
			if output == "" {
				return fmt.Errorf("no output path: pass --output or set artifact.path")
			}

			samples, err := dataset.LoadCSV(data)
			if err != nil {
				return err
			}
			catalogue, err := loadSeed(seedFile)
			if err != nil {
				return err
			}
			knowledge, err := catalogue.KnowledgeBase()
			if err != nil {
				return err
			}

			opts.Logger = a.logger
			report, err := trainer.Build(samples, knowledge, output, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Trained on %d samples (%d held out)\n", report.TrainSize, report.TestSize)
			fmt.Fprintf(out, "Model accuracy: %.2f\n", report.Accuracy)
			fmt.Fprintf(out, "Artifact written to %s (build %s)\n", output, report.Metadata.BuildID)
			for _, label := range report.Unmapped {
				fmt.Fprintf(out, "Warning: %q has no test mapping\n", label)
			}
			trained := make(map[string]bool, len(report.Labels))
			for _, label := range report.Labels {
				trained[label] = true
			}
			for _, name := range catalogue.Names() {
				if !trained[name] {
					fmt.Fprintf(out, "Warning: %q has no training rows\n", name)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "symptoms_data.csv", "training CSV")
	cmd.Flags().StringVarP(&output, "output", "o", "", "artifact path (default is artifact.path)")
	cmd.Flags().StringVar(&seedFile, "seed-file", "", "disease catalogue YAML (default is the built-in catalogue)")
	cmd.Flags().Float64Var(&opts.TestFraction, "test-fraction", opts.TestFraction, "fraction of rows held out for scoring")
	cmd.Flags().Int64Var(&opts.Seed, "split-seed", opts.Seed, "seed for the train/test split")
	cmd.Flags().Float64Var(&opts.Alpha, "alpha", opts.Alpha, "additive smoothing")

	return cmd
}
