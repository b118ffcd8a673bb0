package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgquest/questeval/internal/config"
	"github.com/pgquest/questeval/internal/models"
	"github.com/pgquest/questeval/internal/store"
)

var listStatus string

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded evaluation results",
		Long: `List the latest recorded evaluation result for each quest path.

The evaluation store keeps one record per path, replaced wholesale on every
re-evaluation.`,
		Args: cobra.NoArgs,
		RunE: listCommandE,
	}

	cmd.Flags().StringVar(&listStatus, "status", "", "Filter by status: success, failure, timeout")

	return cmd
}

func listCommandE(cmd *cobra.Command, args []string) error {
	status := models.Status(listStatus)
	if listStatus != "" && !status.Recordable() {
		return fmt.Errorf("'%s' is not a valid status filter (expected success, failure, or timeout)", listStatus)
	}

	dsn, err := config.DatabaseURL()
	if err != nil {
		return err
	}

	evalStore, err := store.Open(cmd.Context(), dsn)
	if err != nil {
		return fmt.Errorf("opening evaluation store: %w", err)
	}
	defer evalStore.Close()

	records, err := evalStore.List(cmd.Context(), status)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No evaluation records found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tSTATUS\tDURATION\tJUDGE\tEVALUATED")
	for _, r := range records {
		judgeCol := "-"
		if r.JudgeStatus != "" {
			judgeCol = r.JudgeStatus
		}
		fmt.Fprintf(w, "%s\t%s\t%dms\t%s\t%s\n",
			r.Path, r.Status, r.DurationMs, judgeCol,
			r.LastEvaluatedAt.Local().Format(time.RFC3339))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d record(s)\n", len(records))
	return nil
}
