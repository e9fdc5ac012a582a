package cli

import (
	"github.com/spf13/cobra"
)

func newTablesCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the foreign tables defined in the tables file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.load(); err != nil {
				return err
			}
			columns := []string{"name", "server", "object", "refresh"}
			var rows [][]any
			for _, name := range s.scanner.Tables() {
				info, err := s.scanner.Describe(name)
				if err != nil {
					return err
				}
				rows = append(rows, []any{info.Name, info.Server, info.Object, info.Refresh})
			}
			return printRows(cmd.OutOrStdout(), s.output, columns, rows)
		},
	}
}

func newDescribeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <table>",
		Short: "Show the columns of a foreign table",
		Example: `  restfdw describe customers
  restfdw describe customers -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.load(); err != nil {
				return err
			}
			info, err := s.scanner.Describe(args[0])
			if err != nil {
				return err
			}
			if s.output == outputJSON {
				return PrintJSON(cmd.OutOrStdout(), info)
			}
			rows := make([][]any, len(info.Columns))
			for i, c := range info.Columns {
				rows[i] = []any{c.Name, string(c.Type), c.SQLType}
			}
			return printRows(cmd.OutOrStdout(), s.output, []string{"column", "type", "sql_type"}, rows)
		},
	}
}
