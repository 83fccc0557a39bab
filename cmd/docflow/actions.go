package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/docflow/internal/extractor"
)

func newActionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List the document actions and the shape their documents take",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ACTION\tSHAPE\tREQUEST PHASE")
			for _, action := range extractor.Actions() {
				a, err := extractor.Lookup(action)
				if err != nil {
					return err
				}
				phase := "no"
				if a.Request.Eligible() {
					phase = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", action, a.Family.Name(), phase)
			}
			return w.Flush()
		},
	}
}
