package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/meeting-intelligence/orchestrator"
)

func newProcessCmd(o *rootOptions) *cobra.Command {
	var (
		opts     orchestrator.Options
		noLabels bool
		noVecs   bool
	)
	cmd := &cobra.Command{
		Use:   "process <meeting-id>",
		Short: "Diarize, transcribe and index a recording from the recordings directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := meetingArg(args)
			if err != nil {
				return err
			}
			d, err := build(cmd.Context(), o.conf)
			if err != nil {
				return err
			}
			defer d.close()

			opts.ApplyLabels = !noLabels
			opts.CreateVectors = !noVecs
			res := d.pipeline.Process(cmd.Context(), id, opts)
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if res.Status == orchestrator.StatusError {
				return fmt.Errorf("processing %s failed: %s", id, res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.Title, "title", "t", "", "meeting title (default \"Meeting <id>\")")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "reprocess even if a transcript exists")
	cmd.Flags().BoolVar(&noLabels, "no-labels", false, "do not apply the meeting's speaker map")
	cmd.Flags().BoolVar(&noVecs, "no-vectors", false, "skip creating vector embeddings")
	return cmd
}
