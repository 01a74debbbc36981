package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "threatmodel",
		Short: "Generate STRIDE threat models from project artifacts",
		Long: `threatmodel sends source files, configs and docs to a reasoning service
and turns its reply into a STRIDE threat model: assets, threats with
mitigations, and a data-flow graph.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAnalyzeCmd(), newSchemaCmd())
	return root
}
