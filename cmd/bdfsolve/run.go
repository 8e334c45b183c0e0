package main

import (
	"github.com/spf13/cobra"

	"github.com/notargets/bdfsolve/deck"
)

var runCmd = &cobra.Command{
	Use:   "run <deck.yaml>",
	Short: "Solve every subcase of a deck",
	Args:  cobra.ExactArgs(1),
	RunE:  runSolve,
}

func init() {
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the YAML result here instead of stdout")
	rootCmd.AddCommand(runCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	recs, err := deck.Load(args[0])
	if err != nil {
		return err
	}
	r, logger, err := newRunner()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	res, err := r.Run(cmd.Context(), recs)
	if err != nil {
		return err
	}
	out, closeOut, err := createOutput()
	if err != nil {
		return err
	}
	if err := res.Write(out); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}
