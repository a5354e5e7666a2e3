package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"adclip/internal/jobstore"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status [batch-id]",
		Short: "Show recent batches or the jobs of one batch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := jobstore.Open(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if len(args) == 1 {
				return renderBatchStatus(cmd, store, args[0])
			}
			return renderBatchList(cmd, store, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of batches to list")
	return cmd
}

func renderBatchList(cmd *cobra.Command, store *jobstore.Store, limit int) error {
	summaries, err := store.ListBatches(cmd.Context(), limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No batches recorded yet")
		return nil
	}

	headers := []string{"Batch", "Jobs", "Accepted", "Low Quality", "Failed", "Cost", "Started"}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(summaries))
	for _, summary := range summaries {
		rows = append(rows, []string{
			summary.BatchID,
			strconv.Itoa(summary.Jobs),
			strconv.Itoa(summary.Accepted),
			strconv.Itoa(summary.LowQuality),
			strconv.Itoa(summary.Failed),
			formatCost(summary.TotalCostUSD),
			summary.StartedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
	return nil
}

func renderBatchStatus(cmd *cobra.Command, store *jobstore.Store, batchID string) error {
	jobs, err := store.ListBatch(cmd.Context(), batchID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(jobs) == 0 {
		fmt.Fprintf(out, "No jobs recorded for batch %s\n", batchID)
		return nil
	}

	colorize := stdoutIsTerminal()
	headers := []string{"Scene", "Status", "Attempts", "Model", "Quality", "Cost", "Artifact"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.Itoa(job.SceneNumber),
			colorizeStatus(job.Status, statusLabel(job.Status), colorize),
			strconv.Itoa(job.AttemptCount),
			job.ModelUsed,
			formatQuality(*job),
			formatCost(job.CostUSD),
			job.ArtifactRef,
		})
	}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))

	spend, err := store.BatchSpend(cmd.Context(), batchID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Ledger spend for batch %s: %s\n", batchID, formatCost(spend))
	return nil
}
