package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"retail-ledger/internal/app"
	"retail-ledger/internal/core"
)

// ErrInconsistent is returned by reconcile when any discrepancy was found, so
// the process can exit non-zero for cron and CI use.
var ErrInconsistent = errors.New("ledger is inconsistent")

const usage = `Usage:
  app reconcile <tenant>                              compare derived totals with their ledgers
  app pending <tenant> [pending|resolved]             list reconciliation queue items
  app resolve <tenant> <item> <user> [note]           mark a queue item resolved
  app stock <tenant> <product>                        per-branch stock of one product
  app export-movements <tenant> <branch> <file.xlsx> [from] [to]
                                                      write stock movements to a spreadsheet`

// Run executes a one-shot CLI command.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, out io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}

	switch args[0] {
	case "reconcile", "rec":
		tenantID, err := intArg(args, 1, "tenant")
		if err != nil {
			return err
		}
		report, err := svc.CheckReconciliation(ctx, core.Actor{TenantID: tenantID})
		if err != nil {
			return fmt.Errorf("reconciliation failed: %w", err)
		}
		printReport(out, report)
		if !report.Consistent() {
			return ErrInconsistent
		}
		return nil

	case "pending":
		tenantID, err := intArg(args, 1, "tenant")
		if err != nil {
			return err
		}
		status := core.ReconciliationStatusPending
		if len(args) > 2 {
			status = args[2]
		}
		result, err := svc.ListReconciliationItems(ctx, core.Actor{TenantID: tenantID}, status)
		if err != nil {
			return fmt.Errorf("failed to list items: %w", err)
		}
		printItems(out, result.Items)
		return nil

	case "resolve":
		tenantID, err := intArg(args, 1, "tenant")
		if err != nil {
			return err
		}
		itemID, err := intArg(args, 2, "item")
		if err != nil {
			return err
		}
		userID, err := intArg(args, 3, "user")
		if err != nil {
			return err
		}
		note := ""
		if len(args) > 4 {
			note = strings.Join(args[4:], " ")
		}
		item, err := svc.ResolveReconciliationItem(ctx, app.ResolveItemRequest{
			TenantID: tenantID, UserID: userID, ItemID: itemID, Note: note,
		})
		if err != nil {
			return fmt.Errorf("failed to resolve item: %w", err)
		}
		fmt.Fprintf(out, "Item %d resolved.\n", item.ID)
		return nil

	case "stock":
		tenantID, err := intArg(args, 1, "tenant")
		if err != nil {
			return err
		}
		productID, err := intArg(args, 2, "product")
		if err != nil {
			return err
		}
		result, err := svc.ListStock(ctx, core.Actor{TenantID: tenantID}, 0, false)
		if err != nil {
			return fmt.Errorf("failed to list stock: %w", err)
		}
		printProductStock(out, productID, result.Levels)
		return nil

	case "export-movements", "export":
		tenantID, err := intArg(args, 1, "tenant")
		if err != nil {
			return err
		}
		branchID, err := intArg(args, 2, "branch")
		if err != nil {
			return err
		}
		if len(args) < 4 {
			return fmt.Errorf("missing output file\n%s", usage)
		}
		query := app.MovementQuery{BranchID: branchID}
		if query.From, err = dateArg(args, 4, false); err != nil {
			return err
		}
		if query.To, err = dateArg(args, 5, true); err != nil {
			return err
		}
		result, err := svc.ListStockMovements(ctx, core.Actor{TenantID: tenantID}, query)
		if err != nil {
			return fmt.Errorf("failed to list movements: %w", err)
		}
		if err := exportMovementsFile(args[3], result.Movements); err != nil {
			return err
		}
		fmt.Fprintf(out, "Exported %d movements to %s\n", len(result.Movements), args[3])
		return nil

	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
}

func intArg(args []string, i int, name string) (int, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing <%s>\n%s", name, usage)
	}
	v, err := strconv.Atoi(args[i])
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", name, args[i])
	}
	return v, nil
}

// dateArg parses an optional YYYY-MM-DD argument. An upper bound covers the whole day.
func dateArg(args []string, i int, endOfDay bool) (time.Time, error) {
	if len(args) <= i {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, args[i])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", args[i])
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

func exportMovementsFile(path string, movements []core.StockMovement) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeMovementsXLSX(f, movements); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printReport(out io.Writer, r *core.ReconciliationReport) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 72))
	fmt.Fprintf(out, "  RECONCILIATION  tenant %d  at %s\n", r.TenantID, r.CheckedAt.Format(time.RFC3339))
	fmt.Fprintln(out, strings.Repeat("=", 72))
	if r.Consistent() {
		fmt.Fprintln(out, "  All derived totals match their ledgers.")
	} else {
		fmt.Fprintf(out, "  %-24s %8s %15s %15s\n", "CHECK", "ENTITY", "STORED", "COMPUTED")
		fmt.Fprintln(out, strings.Repeat("-", 72))
		for _, d := range r.Discrepancies {
			fmt.Fprintf(out, "  %-24s %8d %15s %15s\n", d.Check, d.EntityID, d.Stored.String(), d.Computed.String())
		}
	}
	fmt.Fprintln(out, strings.Repeat("-", 72))
	fmt.Fprintf(out, "  Pending reconciliation items: %d\n", r.PendingItems)
	fmt.Fprintln(out, strings.Repeat("=", 72))
}

func printItems(out io.Writer, items []core.ReconciliationItem) {
	if len(items) == 0 {
		fmt.Fprintln(out, "No reconciliation items.")
		return
	}
	fmt.Fprintf(out, "%-6s %-32s %-8s %-8s %12s %-9s\n", "ID", "KIND", "SALE", "BRANCH", "AMOUNT", "STATUS")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, it := range items {
		sale := "-"
		if it.SaleID != nil {
			sale = strconv.Itoa(*it.SaleID)
		}
		fmt.Fprintf(out, "%-6d %-32s %-8s %-8d %12s %-9s\n", it.ID, it.Kind, sale, it.BranchID, it.Amount.StringFixed(2), it.Status)
	}
}

func printProductStock(out io.Writer, productID int, levels []core.BranchStock) {
	total := 0
	fmt.Fprintf(out, "%-10s %-12s %12s %12s\n", "BRANCH", "PRODUCT", "QUANTITY", "MINIMUM")
	fmt.Fprintln(out, strings.Repeat("-", 50))
	for _, l := range levels {
		if l.ProductID != productID {
			continue
		}
		total++
		fmt.Fprintf(out, "%-10s %-12s %12s %12s\n", l.BranchCode, l.ProductCode, l.Quantity.String(), l.MinQuantity.String())
	}
	if total == 0 {
		fmt.Fprintf(out, "No stock rows for product %d.\n", productID)
	}
}
