package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"duck-restfdw/internal/engine"
)

func newQueryCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a read-only SQL query over the foreign tables",
		Long: `Runs a SQL statement in an in-memory DuckDB database. Every foreign table
the statement mentions is fetched from the remote API and loaded first.
Writes to foreign tables are rejected.`,
		Example: `  restfdw query "SELECT given_name, email_address FROM customers ORDER BY created_at DESC LIMIT 10"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.load(); err != nil {
				return err
			}
			db, err := s.openDuckDB()
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			mat := engine.NewMaterializer(db, s.scanner, s.logger)
			res, err := engine.NewQueryService(db, mat).Query(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printRows(cmd.OutOrStdout(), s.output, res.Columns, res.Rows)
		},
	}
}
