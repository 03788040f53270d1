package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Veraticus/ecofinance-notify/internal/cli"
	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/model"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))

// withApp opens the pipeline with line toasts on the command's output,
// runs fn and closes it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, settings, printToasts(cmd.OutOrStdout()))
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()
	return fn(ctx, a)
}

// newTable writes tab-separated rows with a styled header and separator.
func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	styled := make([]string, len(headers))
	rules := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = headerStyle.Render(h)
		rules[i] = strings.Repeat("─", max(len(h), 6))
	}
	fmt.Fprintln(tw, strings.Join(styled, "\t"))
	fmt.Fprintln(tw, strings.Join(rules, "\t"))
	return tw
}

func flush(tw *tabwriter.Writer) {
	if err := tw.Flush(); err != nil {
		slog.Error("failed to flush table writer", "error", err)
	}
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil || v <= 0 {
		return 0, common.NewUserError(fmt.Sprintf("%q is not a positive amount", s), err)
	}
	return v, nil
}

func formatMoney(v float64) string {
	return "R$ " + strconv.FormatFloat(v, 'f', 2, 64)
}

func formatPercent(p float64, ok bool) string {
	if !ok {
		return "n/a"
	}
	return strconv.FormatFloat(p, 'f', 0, 64) + "%"
}

// reportFired prints what a rule check dispatched.
func reportFired(w io.Writer, fired []model.Notification) {
	if len(fired) == 0 {
		fmt.Fprintln(w, cli.SubtleStyle.Render("No rules fired."))
		return
	}
	fmt.Fprintln(w, cli.FormatInfo(fmt.Sprintf("%d rule notification(s) fired", len(fired))))
}
