package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/notargets/bdfsolve/deck"
	"github.com/notargets/bdfsolve/model"
)

var checkCmd = &cobra.Command{
	Use:   "check <deck.yaml>",
	Short: "Build and cross-reference a deck without solving",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var pruneCmd = &cobra.Command{
	Use:   "prune <deck.yaml>",
	Short: "List the nodes, coordinate systems, properties and materials nothing uses",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrune,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(pruneCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	recs, err := deck.Load(args[0])
	if err != nil {
		return err
	}
	r, logger, err := newRunner()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	p, err := r.Prepare(recs, logger)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	counts := p.Model.Counts()
	for _, c := range sortedClasses(counts) {
		fmt.Fprintf(w, "%-14s %d\n", c, counts[c])
	}
	fmt.Fprintf(w, "%-14s %d\n", "dofs", p.DOFs.Len())
	return nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	recs, err := deck.Load(args[0])
	if err != nil {
		return err
	}
	r, logger, err := newRunner()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	r.Config.Params.Prune = true
	p, err := r.Prepare(recs, logger)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, c := range sortedClasses(p.Pruned.Removed) {
		if ids := p.Pruned.Removed[c]; len(ids) > 0 {
			fmt.Fprintf(w, "%-14s %v\n", c, ids)
		}
	}
	fmt.Fprintf(w, "removed %d\n", p.Pruned.Total())
	return nil
}

func sortedClasses[V any](m map[model.Class]V) []model.Class {
	classes := make([]model.Class, 0, len(m))
	for c := range m {
		classes = append(classes, c)
	}
	slices.Sort(classes)
	return classes
}
