package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/ecofinance-notify/internal/cli"
	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/config"
	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/ofx"
)

const dateLayout = "2006-01-02"

func txCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Record ledger transactions",
	}
	cmd.AddCommand(txAddCmd())
	return cmd
}

func txAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <amount> <description>",
		Short: "Record a transaction and check the rules",
		Example: `  ecofin tx add 42,90 "Mercado" --category Alimentação
  ecofin tx add 3000 "Salário" --income --date 2026-03-05`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			category, _ := cmd.Flags().GetString("category")
			income, _ := cmd.Flags().GetBool("income")
			dateStr, _ := cmd.Flags().GetString("date")

			tx := model.Transaction{
				Description: args[1],
				Category:    category,
				Amount:      amount,
				Type:        model.TransactionExpense,
			}
			if income {
				tx.Type = model.TransactionIncome
			}
			if dateStr != "" {
				tx.Date, err = time.ParseInLocation(dateLayout, dateStr, time.Local)
				if err != nil {
					return common.NewUserError(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", dateStr), err)
				}
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				saved, added, err := a.ledger.AddTransaction(ctx, tx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !added {
					fmt.Fprintln(out, cli.FormatWarning("Transaction already recorded, skipping"))
					return nil
				}
				fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Recorded %s %s on %s",
					saved.Type, formatMoney(saved.Amount), saved.Date.Format("02/01/2006"))))

				fired, err := a.check(ctx)
				reportFired(out, fired)
				return err
			})
		},
	}
	cmd.Flags().String("category", "", "budget category of the transaction")
	cmd.Flags().Bool("income", false, "record money coming in")
	cmd.Flags().String("date", "", "transaction date (YYYY-MM-DD, default today)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <files...>",
		Short: "Import OFX/QFX statements and check the rules",
		Long: `Import transactions from OFX/QFX bank and credit card statements.

Transactions already in the ledger are skipped. Glob patterns are expanded,
so quoted patterns work on shells that do not expand them.`,
		Example: `  ecofin import extrato.ofx
  ecofin import "~/Downloads/*.ofx" --dry-run`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}
	cmd.Flags().Bool("dry-run", false, "parse the files without saving")
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	files, err := expandFiles(args)
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	parser := ofx.NewParser(ofx.WithProgress(cmd.ErrOrStderr()))
	out := cmd.OutOrStdout()

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr(), "Import cancelled, nothing was saved.")
	ctx := handler.HandleInterrupts(cmd.Context())

	var all []model.Transaction
	for _, path := range files {
		txns, err := parseStatement(ctx, parser, path)
		if handler.WasInterrupted() {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%s: %d transactions", filepath.Base(path), len(txns))))
		all = append(all, txns...)
	}

	if dryRun {
		tw := newTable(out, "Date", "Description", "Category", "Amount")
		for _, t := range all {
			amount := formatMoney(t.Amount)
			if t.Type == model.TransactionExpense {
				amount = "-" + amount
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Date.Format("02/01/2006"), t.Description, t.Category, amount)
		}
		flush(tw)
		fmt.Fprintln(out, cli.FormatWarning("Dry run, nothing was saved"))
		return nil
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		added, err := a.ledger.ImportTransactions(ctx, all)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d new transactions (%d already recorded)", added, len(all)-added)))
		if added == 0 {
			return nil
		}
		fired, err := a.check(ctx)
		reportFired(out, fired)
		return err
	})
}

func parseStatement(ctx context.Context, parser *ofx.Parser, path string) ([]model.Transaction, error) {
	f, err := os.Open(path) //nolint:gosec // User-specified statement file
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("cannot open %s", path), err)
	}
	defer func() { _ = f.Close() }()

	txns, err := parser.ParseFile(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return txns, nil
}

// expandFiles resolves ~ and glob patterns; plain paths pass through.
func expandFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		matches, err := filepath.Glob(config.ExpandPath(arg))
		if err != nil {
			return nil, common.NewUserError(fmt.Sprintf("invalid pattern %q", arg), err)
		}
		if len(matches) == 0 {
			return nil, common.NewUserError(fmt.Sprintf("no files match %q", arg), nil)
		}
		files = append(files, matches...)
	}
	return files, nil
}
