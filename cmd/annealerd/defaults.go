package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/GoSim-25-26J-441/annealing-core/internal/params"
)

func newDefaultsCommand() *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Print the run parameters with their defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if asYAML {
				data, err := yaml.Marshal(params.Defaults().Map())
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tDEFAULT\tDESCRIPTION")
			for _, f := range params.Describe() {
				fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n", f.Name, f.Kind, f.Default, f.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print a parameter document instead of a table")
	return cmd
}
