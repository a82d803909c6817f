package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/morezero/script-runtime/pkg/db"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect or prune the invocation and download journal",
}

var journalInvocationsCmd = &cobra.Command{
	Use:   "invocations",
	Short: "List recent invocations, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJournalInvocations,
}

var journalDownloadsCmd = &cobra.Command{
	Use:   "downloads",
	Short: "List recent per-URL download outcomes, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJournalDownloads,
}

var journalStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count journaled invocations by result code",
	Args:  cobra.NoArgs,
	RunE:  runJournalStats,
}

var journalPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete journal rows older than --older-than",
	Args:  cobra.NoArgs,
	RunE:  runJournalPurge,
}

var journalClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Truncate the journal; schema is preserved",
	Args:  cobra.NoArgs,
	RunE:  runJournalClear,
}

func init() {
	for _, c := range []*cobra.Command{journalInvocationsCmd, journalDownloadsCmd} {
		c.Flags().Int("limit", 50, "Maximum rows")
		c.Flags().String("request-id", "", "Only rows for this request id")
		c.Flags().Bool("json", false, "Print rows as JSON")
	}
	journalInvocationsCmd.Flags().String("namespace", "", "Only this namespace")
	journalInvocationsCmd.Flags().String("operation", "", "Only this operation")
	journalInvocationsCmd.Flags().String("code", "", "Only this result code (OK, OPERATION_FAILED, ...)")
	journalDownloadsCmd.Flags().String("status", "", "Only this status (written, skipped, failed)")
	journalPurgeCmd.Flags().Duration("older-than", 30*24*time.Hour, "Age cutoff")

	journalCmd.AddCommand(journalInvocationsCmd, journalDownloadsCmd, journalStatsCmd, journalPurgeCmd, journalClearCmd)
	rootCmd.AddCommand(journalCmd)
}

// withRepository opens the pool for one journal command.
func withRepository(cmd *cobra.Command, fn func(repo *db.Repository) error) error {
	cfg, err := loadDBConfig(cmd)
	if err != nil {
		return err
	}
	pool, err := db.NewPool(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(db.NewRepository(pool))
}

func runJournalInvocations(cmd *cobra.Command, _ []string) error {
	params := db.ListInvocationsParams{}
	params.Namespace, _ = cmd.Flags().GetString("namespace")
	params.Operation, _ = cmd.Flags().GetString("operation")
	params.Code, _ = cmd.Flags().GetString("code")
	params.RequestID, _ = cmd.Flags().GetString("request-id")
	params.Limit, _ = cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	return withRepository(cmd, func(repo *db.Repository) error {
		rows, err := repo.ListInvocations(cmd.Context(), params)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), rows)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTARTED\tREQUEST\tCALL\tCODE\tMS\tERROR")
		for _, r := range rows {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s.%s\t%s\t%d\t%s\n",
				r.ID, r.Started.Format(time.RFC3339), r.RequestID, r.Namespace, r.Operation, r.Code, r.DurationMs, r.Error)
		}
		return tw.Flush()
	})
}

func runJournalDownloads(cmd *cobra.Command, _ []string) error {
	params := db.ListDownloadsParams{}
	params.Status, _ = cmd.Flags().GetString("status")
	params.RequestID, _ = cmd.Flags().GetString("request-id")
	params.Limit, _ = cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	return withRepository(cmd, func(repo *db.Repository) error {
		rows, err := repo.ListDownloads(cmd.Context(), params)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), rows)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCREATED\tREQUEST\tSTATUS\tBYTES\tURL\tPATH/ERROR")
		for _, r := range rows {
			detail := r.Path
			if r.Error != "" {
				detail = r.Error
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
				r.ID, r.Created.Format(time.RFC3339), r.RequestID, r.Status, r.Bytes, r.URL, detail)
		}
		return tw.Flush()
	})
}

func runJournalStats(cmd *cobra.Command, _ []string) error {
	return withRepository(cmd, func(repo *db.Repository) error {
		counts, err := repo.CountByCode(cmd.Context())
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), counts)
	})
}

func runJournalPurge(cmd *cobra.Command, _ []string) error {
	age, _ := cmd.Flags().GetDuration("older-than")
	if age <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}
	return withRepository(cmd, func(repo *db.Repository) error {
		n, err := repo.PurgeBefore(cmd.Context(), time.Now().Add(-age))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %d row(s).\n", n)
		return nil
	})
}

func runJournalClear(cmd *cobra.Command, _ []string) error {
	cfg, err := loadDBConfig(cmd)
	if err != nil {
		return err
	}
	pool, err := db.NewPool(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := db.ClearJournal(cmd.Context(), pool); err != nil {
		return fmt.Errorf("clear journal: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Journal cleared.")
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
