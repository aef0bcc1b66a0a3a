package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertwitch/primcheck/internal/runner"
	"github.com/desertwitch/primcheck/internal/schema"
	"github.com/dustin/go-humanize"
)

const maxErrorWidth = 72

//nolint:gochecknoglobals
var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)

	statusStyles = map[schema.Status]lipgloss.Style{
		schema.StatusPassed:     cellStyle.Foreground(lipgloss.Color("#04B575")),
		schema.StatusFailed:     cellStyle.Foreground(lipgloss.Color("#FF5F87")).Bold(true),
		schema.StatusSkipped:    cellStyle.Foreground(lipgloss.Color("#FFD75F")),
		schema.StatusSoftFailed: cellStyle.Foreground(lipgloss.Color("#FFAF5F")),
		schema.StatusAborted:    cellStyle.Foreground(lipgloss.Color("#FF5F87")),
	}
)

// renderReport writes a table of all scenario results, followed by the
// totals and any cleanup errors.
func renderReport(w io.Writer, report *runner.Report) error {
	rows := make([][]string, 0, len(report.Results))
	for _, result := range report.Results {
		errText := ""
		if result.Err != nil {
			errText = truncate(result.Err.Error(), maxErrorWidth)
		}

		rows = append(rows, []string{
			result.Name,
			result.Kind.String(),
			result.Status.String(),
			result.Duration.Round(time.Microsecond).String(),
			errText,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))).
		Headers("SCENARIO", "KIND", "STATUS", "DURATION", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}

			if col == 2 && row >= 0 && row < len(report.Results) { //nolint:mnd
				if style, ok := statusStyles[report.Results[row].Status]; ok {
					return style
				}
			}

			return cellStyle
		})

	var b strings.Builder

	b.WriteString(t.String())
	b.WriteString("\n")
	b.WriteString(summary(report))

	for _, err := range report.CleanupErrors {
		fmt.Fprintf(&b, "cleanup: %v\n", err)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("(report) %w", err)
	}

	return nil
}

func summary(report *runner.Report) string {
	var payloadBytes uint64
	for _, result := range report.Results {
		if result.Status != schema.StatusPassed {
			continue
		}

		for _, input := range result.Inputs {
			if input.Name == "payload" || input.Name == "content" {
				payloadBytes += uint64(len(input.Value))
			}
		}
	}

	return fmt.Sprintf("%s scenarios in %s: %d passed, %d failed, %d skipped, %d soft-failed, %d aborted (%s of payload verified)\n",
		humanize.Comma(int64(len(report.Results))),
		report.Elapsed().Round(time.Millisecond),
		report.Count(schema.StatusPassed),
		report.Count(schema.StatusFailed),
		report.Count(schema.StatusSkipped),
		report.Count(schema.StatusSoftFailed),
		report.Count(schema.StatusAborted),
		humanize.Bytes(payloadBytes),
	)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}

	return string(r[:width-1]) + "…"
}
