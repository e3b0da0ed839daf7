// Package cli manages the SQLite archive index from the command line
package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"chessbot/internal/storage"
)

// Run is the entry point for the db mini-app
func Run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("subcommand required: init, delete, query")
	}

	switch args[0] {
	case "init":
		return runInit(args[1:], out)
	case "delete":
		return runDelete(args[1:], out)
	case "query":
		return runQuery(args[1:], out)
	default:
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}
}

func runInit(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("init", pflag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *path == "" {
		return fmt.Errorf("database path required")
	}

	index, err := storage.NewIndex(*path)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer index.Close()

	if err := index.InitDB(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	fmt.Fprintf(out, "Database initialized at: %s\n", *path)
	return nil
}

func runDelete(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("delete", pflag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *path == "" {
		return fmt.Errorf("database path required")
	}

	index, err := storage.NewIndex(*path)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}

	if err := index.DeleteDB(); err != nil {
		return fmt.Errorf("failed to delete database: %w", err)
	}

	fmt.Fprintf(out, "Database deleted: %s\n", *path)
	return nil
}

func runQuery(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("query", pflag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")
	player := fs.String("player", "", "Participant identity to filter (optional, * for all)")
	outcome := fs.String("outcome", "", "Outcome to filter: white wins, black wins, draw, unknown (optional, * for all)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *path == "" {
		return fmt.Errorf("database path required")
	}

	index, err := storage.NewIndex(*path)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer index.Close()

	records, err := index.QueryArchives(*player, *outcome)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No archived games found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Archive ID\tOutcome\tTermination\tMoves\tPlayers\tArchived")
	fmt.Fprintln(w, strings.Repeat("-", 80))

	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ArchiveID[:8]+"...",
			r.Outcome,
			r.Termination,
			r.NumMoves,
			strings.Join(r.Players, ", "),
			r.ArchivedAt.UTC().Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nFound %d game(s)\n", len(records))
	return nil
}
