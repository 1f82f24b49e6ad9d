package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/milad-ghiami/EPANET/core"
	"github.com/milad-ghiami/EPANET/toolkit"
)

func newRunCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <input> [report] [results]",
		Short: "Run a complete simulation",
		Long: `Run hydraulics and water quality over the whole duration of a network
description, then write the text report.

Example:
  epanet run net1.json net1.rpt net1.db`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rpt, out := argAt(args, 1), argAt(args, 2)
			progress := func(msg string) { fmt.Fprintln(cmd.OutOrStdout(), msg) }
			if err := toolkit.RunSimulation(args[0], rpt, out, progress,
				toolkit.WithContext(cmd.Context()),
				toolkit.WithMetrics(root.solver),
			); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Simulation complete.")
			return nil
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <input>...",
		Short: "Load network descriptions and report their size",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				p, err := toolkit.NewProject(toolkit.WithContext(cmd.Context()))
				if err != nil {
					return err
				}
				if err := p.Open(path, "", ""); err != nil {
					p.Delete()
					return fmt.Errorf("%s: %w", path, err)
				}
				nodes, _ := p.GetCount(core.NodeCount)
				tanks, _ := p.GetCount(core.TankCount)
				links, _ := p.GetCount(core.LinkCount)
				patterns, _ := p.GetCount(core.PatternCount)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes (%d tanks/reservoirs), %d links, %d patterns\n",
					path, nodes, tanks, links, patterns)
				if err := p.Delete(); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
