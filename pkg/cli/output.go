package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"

	"duck-restfdw/internal/engine"
)

// PrintTable writes rows as aligned columns under upper-cased headers.
func PrintTable(w io.Writer, columns []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(lo.Map(columns, func(c string, _ int) string { return strings.ToUpper(c) }), "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

// PrintCSV writes a header line followed by one record per row.
func PrintCSV(w io.Writer, columns []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// printRows renders a result set in the selected output format. JSON output
// is an array of objects keyed by column name.
func printRows(w io.Writer, format outputFormat, columns []string, rows [][]any) error {
	switch format {
	case outputJSON:
		objs := make([]map[string]any, len(rows))
		for i, row := range rows {
			obj := make(map[string]any, len(columns))
			for j, c := range columns {
				obj[c] = row[j]
			}
			objs[i] = obj
		}
		return PrintJSON(w, objs)
	case outputCSV:
		return PrintCSV(w, columns, formatRows(rows))
	default:
		PrintTable(w, columns, formatRows(rows))
		return nil
	}
}

func formatRows(rows [][]any) [][]string {
	return lo.Map(rows, func(row []any, _ int) []string {
		return lo.Map(row, func(v any, _ int) string { return engine.FormatValue(v) })
	})
}
