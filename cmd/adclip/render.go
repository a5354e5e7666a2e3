package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"adclip/internal/clip"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

var titleCaser = cases.Title(language.English)

func statusLabel(status clip.Status) string {
	return titleCaser.String(status.Label())
}

func colorizeStatus(status clip.Status, label string, colorize bool) string {
	if !colorize {
		return label
	}
	var color string
	switch status {
	case clip.StatusAccepted:
		color = ansiGreen
	case clip.StatusAcceptedLowQuality:
		color = ansiYellow
	case clip.StatusFailed:
		color = ansiRed
	}
	if color == "" {
		return label
	}
	return color + label + ansiReset
}

func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func formatQuality(job clip.ClipJob) string {
	if job.OverallQuality == nil {
		return "-"
	}
	return strconv.FormatFloat(*job.OverallQuality, 'f', 1, 64)
}

func formatCost(amount float64) string {
	return "$" + strconv.FormatFloat(amount, 'f', 2, 64)
}

func renderBatchResult(out io.Writer, result clip.BatchResult) {
	colorize := stdoutIsTerminal()

	headers := []string{"Scene", "Status", "Attempts", "Model", "Quality", "Cost", "Error"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(result.Jobs))
	for _, job := range result.Jobs {
		errText := job.ErrorMessage
		if len(errText) > 60 {
			errText = errText[:57] + "..."
		}
		rows = append(rows, []string{
			strconv.Itoa(job.SceneNumber),
			colorizeStatus(job.Status, statusLabel(job.Status), colorize),
			strconv.Itoa(job.AttemptCount),
			job.ModelUsed,
			formatQuality(job),
			formatCost(job.CostUSD),
			errText,
		})
	}

	fmt.Fprintln(out, renderTable(headers, rows, aligns))
	fmt.Fprintf(out, "Batch %s: %d accepted, %d low quality, %d failed, total %s in %s\n",
		result.BatchID,
		result.Accepted,
		result.LowQuality,
		result.Failed,
		formatCost(result.TotalCostUSD),
		result.WallTime.Round(10*time.Millisecond),
	)
}
