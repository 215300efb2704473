package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func buildCmd(a *app) *cobra.Command {
	var (
		workspace string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Synthesize a workspace graph and print its statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.buildWorkspace(cmd.Context(), workspace, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			banner(out, "workspace "+workspace)
			row(out, "Documents", res.Stats.Documents)
			row(out, "Nodes", res.Stats.Nodes)
			row(out, "Structural edges", res.Stats.StructuralEdges)
			row(out, "Reference edges", good.Sprint(res.Stats.ReferenceEdges))
			if res.Stats.DroppedEdges > 0 {
				row(out, "Dropped edges", warn.Sprint(res.Stats.DroppedEdges))
			}
			if res.Stats.CollidedNodes > 0 {
				row(out, "Id collisions", warn.Sprint(res.Stats.CollidedNodes))
			}
			if len(res.Skipped) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, warn.Sprintf("  %d document(s) skipped", len(res.Skipped)))
				for _, s := range res.Skipped {
					fmt.Fprintf(out, "  %s %s %s\n", bad.Sprint("✗"), s.DocumentID, subtle.Sprint(s.Reason))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "workspace id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full graph as JSON")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}
