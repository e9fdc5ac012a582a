package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"duck-restfdw/internal/domain"
)

func newScanCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <table>",
		Short: "Fetch every row of a foreign table from the remote API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.load(); err != nil {
				return err
			}
			info, err := s.scanner.Describe(args[0])
			if err != nil {
				return err
			}
			columns := make([]string, len(info.Columns))
			for i, c := range info.Columns {
				columns[i] = c.Name
			}

			var rows [][]any
			res, err := s.scanner.Scan(cmd.Context(), args[0], func(row domain.Row) error {
				rows = append(rows, cellValues(row, s.output == outputJSON))
				return nil
			})
			if err != nil {
				return err
			}
			if err := printRows(cmd.OutOrStdout(), s.output, columns, rows); err != nil {
				return err
			}
			if s.output == outputTable {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d rows from %d pages in %s\n", res.Rows, res.Pages, res.Duration.Round(time.Millisecond))
			}
			return nil
		},
	}
}

// cellValues converts a row for printing. With rawJSON set, Json cells are
// embedded as JSON instead of quoted text.
func cellValues(row domain.Row, rawJSON bool) []any {
	out := row.Values()
	if rawJSON {
		for i, c := range row {
			if c.Kind == domain.CellJSON {
				out[i] = json.RawMessage(c.Str)
			}
		}
	}
	return out
}
