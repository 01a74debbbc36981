package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/SUBRATAxTL/ai-threat-model-app/internal/infra/ai/prompt"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema replies must satisfy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(prompt.Contract())
		},
	}
}
