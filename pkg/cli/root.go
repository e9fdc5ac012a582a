// Package cli implements the restfdw command line.
package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb driver
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"duck-restfdw/internal/config"
	"duck-restfdw/internal/engine"
	"duck-restfdw/internal/transport"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if f := rootCmd.PersistentFlags().Lookup("output"); f != nil && f.Value.String() == "json" {
			_ = PrintJSON(os.Stdout, map[string]string{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// session is the state shared by subcommands once flags are resolved.
type session struct {
	tablesPath string
	output     outputFormat
	logLevel   string

	logger  *slog.Logger
	tables  *config.TablesFile
	scanner *engine.Scanner
}

func newRootCmd() *cobra.Command {
	s := &session{}

	rootCmd := &cobra.Command{
		Use:           "restfdw",
		Short:         "Query paginated REST collections as tables",
		Long:          "Command-line interface for scanning REST API collections and querying them with DuckDB.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(".env"); err != nil {
				return err
			}
			if !cmd.Flags().Changed("tables") {
				if v := os.Getenv("TABLES_FILE"); v != "" {
					s.tablesPath = v
				}
			}
			if !cmd.Flags().Changed("output") {
				if v := os.Getenv("RESTFDW_OUTPUT"); v != "" {
					if err := s.output.Set(v); err != nil {
						return fmt.Errorf("RESTFDW_OUTPUT: %w", err)
					}
				} else {
					s.output = defaultOutput(os.Stdout)
				}
			}
			s.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: config.ParseLevel(s.logLevel),
			}))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&s.tablesPath, "tables", "tables.yaml", "Foreign table definitions file")
	s.output = outputTable
	rootCmd.PersistentFlags().VarP(&s.output, "output", "o", "Output format (table, json, csv)")
	rootCmd.PersistentFlags().StringVar(&s.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newTablesCmd(s))
	rootCmd.AddCommand(newDescribeCmd(s))
	rootCmd.AddCommand(newScanCmd(s))
	rootCmd.AddCommand(newQueryCmd(s))
	rootCmd.AddCommand(newVersionCmd(s))
	return rootCmd
}

// load reads the tables file and builds a scanner on first use.
func (s *session) load() error {
	if s.scanner != nil {
		return nil
	}
	tables, err := config.LoadTables(s.tablesPath)
	if err != nil {
		return err
	}
	s.tables = tables
	tr := transport.NewHTTPTransport(transport.WithLogger(s.logger))
	s.scanner = engine.NewScanner(tables, tr, nil, s.logger)
	return nil
}

// openDuckDB opens a fresh in-memory database.
func (s *session) openDuckDB() (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return db, nil
}

// outputFormat is the value of the --output flag.
type outputFormat string

const (
	outputTable outputFormat = "table"
	outputJSON  outputFormat = "json"
	outputCSV   outputFormat = "csv"
)

var _ pflag.Value = (*outputFormat)(nil)

func (o *outputFormat) String() string { return string(*o) }

func (o *outputFormat) Type() string { return "format" }

func (o *outputFormat) Set(v string) error {
	switch f := outputFormat(v); f {
	case outputTable, outputJSON, outputCSV:
		*o = f
		return nil
	}
	return fmt.Errorf("unsupported output format %q: use 'table', 'json' or 'csv'", v)
}

// defaultOutput picks table output for terminals and JSON otherwise.
func defaultOutput(f *os.File) outputFormat {
	if term.IsTerminal(int(f.Fd())) { //nolint:gosec // fd fits in int
		return outputTable
	}
	return outputJSON
}

func newVersionCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if s.output == outputJSON {
				return PrintJSON(cmd.OutOrStdout(), map[string]string{"version": version, "commit": commit})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "restfdw version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
