package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/kartoza/lab-test-optimizer/internal/artifact"
	"github.com/spf13/cobra"
)

func (a *app) newInspectCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect [artifact]",
		Short: "Print artifact metadata and mapped diagnoses",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Artifact.Path
			if len(args) == 1 {
				path = args[0]
			}

			bundle, err := artifact.Open(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			model := bundle.Model.GetConfig()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"metadata":  bundle.Metadata,
					"model":     model,
					"labels":    bundle.Model.Labels(),
					"diagnoses": bundle.KB.Labels(),
				})
			}

			m := bundle.Metadata
			fmt.Fprintf(out, "Artifact: %s\n", path)
			fmt.Fprintf(out, "Format:   %s v%s\n", m.Format, m.Version)
			fmt.Fprintf(out, "Build:    %s\n", m.BuildID)
			fmt.Fprintf(out, "Created:  %s\n", m.Created)
			fmt.Fprintf(out, "Samples:  %d\n", m.Samples)
			fmt.Fprintf(out, "Accuracy: %.2f\n", m.Accuracy)
			fmt.Fprintf(out, "Classes:  %v\n", model["classes"])
			fmt.Fprintf(out, "Vocabulary: %v terms (alpha %v)\n\n", model["vocabulary"], model["alpha"])

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DIAGNOSIS\tTESTS\tCOST")
			for _, label := range bundle.KB.Labels() {
				total := 0.0
				tests := bundle.KB.Lookup(label)
				for _, t := range tests {
					total += t.Cost
				}
				fmt.Fprintf(tw, "%s\t%d\t%.2f\n", label, len(tests), total)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
