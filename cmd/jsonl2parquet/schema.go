package main

import (
	"fmt"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newSchemaCmd(gf *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the active column schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadPipeline(cmd, gf, nil)
			if err != nil {
				return err
			}
			sch, err := p.ResolveSchema()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				b, err := json.MarshalIndent(sch.Columns, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(b))
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "#\tCOLUMN\tTYPE\n")
			for i, c := range sch.Columns {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", i, c.Name, c.Kind)
			}
			fmt.Fprintf(tw, "\n%s: %d columns\n", sch.Name, sch.Len())
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the columns as JSON")
	cmd.Flags().String("schema", "people", "built-in schema name")
	return cmd
}
