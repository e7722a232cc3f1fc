package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/bratbench/experiment"
	"github.com/YuminosukeSato/bratbench/plotting"
)

func newPlotCmd() *cobra.Command {
	var (
		plotDir string
		title   string
		size    float64
	)
	cmd := &cobra.Command{
		Use:   "plot RESULTS.json...",
		Short: "Plot saved MSE trajectories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				res, err := experiment.LoadResults(path)
				if err != nil {
					return err
				}
				t := title
				if t == "" {
					t = res.DatasetID
				}
				out, err := plotting.PlotMeanStdTrajectories(res.MSERuns(), res.Epoch, res.DatasetID, plotDir,
					plotting.WithTitle(t),
					plotting.WithSize(vg.Length(size)*vg.Inch, vg.Length(size)*vg.Inch),
				)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&plotDir, "plot-dir", "plots", "output directory")
	cmd.Flags().StringVar(&title, "title", "", "plot title (default the dataset id)")
	cmd.Flags().Float64Var(&size, "size", 6, "image side in inches")
	return cmd
}
