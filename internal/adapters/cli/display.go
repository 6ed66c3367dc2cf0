package cli

import (
	"fmt"
	"io"
	"strings"

	"demand-ledger/internal/app"
	"demand-ledger/internal/core"
)

const dateLayout = "2006-01-02"

func rule(w io.Writer, ch string, width int) {
	fmt.Fprintln(w, strings.Repeat(ch, width))
}

func header(w io.Writer, title string, width int) {
	fmt.Fprintln(w)
	rule(w, "=", width)
	fmt.Fprintf(w, "  %s\n", title)
	rule(w, "=", width)
}

func batchState(b *core.Batch) string {
	switch {
	case b.Closed && b.StockDeducted:
		return "closed, stock deducted"
	case b.Closed:
		return "closed"
	default:
		return "open"
	}
}

func printProducts(w io.Writer, result *app.ProductListResult) {
	header(w, "PRODUCTS", 80)
	if len(result.Products) == 0 {
		fmt.Fprintln(w, "  No products found.")
		rule(w, "=", 80)
		return
	}
	fmt.Fprintf(w, "  %-36s %-24s %8s %8s\n", "ID", "NAME", "PRICE", "COST")
	rule(w, "-", 80)
	for _, p := range result.Products {
		fmt.Fprintf(w, "  %-36s %-24s %8s %8s\n", p.ID, p.Name, p.Price.StringFixed(2), p.CostPrice.StringFixed(2))
	}
	rule(w, "=", 80)
}

func printClients(w io.Writer, result *app.ClientListResult) {
	header(w, "CLIENTS", 80)
	if len(result.Clients) == 0 {
		fmt.Fprintln(w, "  No clients found.")
		rule(w, "=", 80)
		return
	}
	fmt.Fprintf(w, "  %-36s %-26s %s\n", "ID", "NAME", "PHONE")
	rule(w, "-", 80)
	for _, c := range result.Clients {
		fmt.Fprintf(w, "  %-36s %-26s %s\n", c.ID, c.Name, c.Phone)
	}
	rule(w, "=", 80)
}

func printStockLevels(w io.Writer, result *app.StockResult) {
	header(w, "STOCK LEVELS", 72)
	if len(result.Levels) == 0 {
		fmt.Fprintln(w, "  No stock records found.")
		rule(w, "=", 72)
		return
	}
	fmt.Fprintf(w, "  %-36s %-20s %10s\n", "PRODUCT ID", "PRODUCT", "ON HAND")
	rule(w, "-", 72)
	for _, l := range result.Levels {
		fmt.Fprintf(w, "  %-36s %-20s %10s\n", l.ProductID, l.ProductName, l.Quantity.String())
	}
	rule(w, "=", 72)
}

func printBatch(w io.Writer, b *core.Batch) {
	fmt.Fprintf(w, "Batch %s  %s  (%s)\n", b.ID, b.DemandDate.Format(dateLayout), batchState(b))
}

func printBatches(w io.Writer, result *app.BatchListResult) {
	header(w, "DEMAND BATCHES", 72)
	if len(result.Batches) == 0 {
		fmt.Fprintln(w, "  No batches found.")
		rule(w, "=", 72)
		return
	}
	fmt.Fprintf(w, "  %-12s %-36s %s\n", "DATE", "ID", "STATE")
	rule(w, "-", 72)
	for i := range result.Batches {
		b := &result.Batches[i]
		fmt.Fprintf(w, "  %-12s %-36s %s\n", b.DemandDate.Format(dateLayout), b.ID, batchState(b))
	}
	rule(w, "=", 72)
}

func printTotals(w io.Writer, result *app.BatchTotalsResult) {
	header(w, fmt.Sprintf("PURCHASE TOTALS  %s  (%s)", result.Batch.DemandDate.Format(dateLayout), batchState(result.Batch)), 60)
	if len(result.Totals) == 0 {
		fmt.Fprintln(w, "  No demand recorded.")
		rule(w, "=", 60)
		return
	}
	fmt.Fprintf(w, "  %-40s %12s\n", "PRODUCT", "QUANTITY")
	rule(w, "-", 60)
	for _, t := range result.Totals {
		fmt.Fprintf(w, "  %-40s %12s\n", t.ProductName, t.Quantity.String())
	}
	rule(w, "=", 60)
}

func printDetails(w io.Writer, result *app.BatchDetailsResult) {
	header(w, fmt.Sprintf("CLIENT DEMAND  %s", result.Batch.DemandDate.Format(dateLayout)), 72)
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "  No entries.")
		rule(w, "=", 72)
		return
	}
	fmt.Fprintf(w, "  %-24s %-28s %10s\n", "CLIENT", "PRODUCT", "QUANTITY")
	rule(w, "-", 72)
	for _, e := range result.Entries {
		qty := e.Quantity.String()
		if e.IsDeleted {
			qty += " (deleted)"
		}
		fmt.Fprintf(w, "  %-24s %-28s %10s\n", e.ClientName, e.ProductName, qty)
	}
	rule(w, "=", 72)
}

func printStats(w io.Writer, result *app.BatchStatsResult) {
	s := result.Stats
	fmt.Fprintf(w, "%s: %d products, %d clients, %d entries, %s units\n",
		result.Batch.DemandDate.Format(dateLayout), s.ProductCount, s.ClientCount, s.EntryCount, s.TotalQuantity.String())
}

func printBills(w io.Writer, result *app.BillListResult) {
	header(w, "BILLS", 84)
	if len(result.Bills) == 0 {
		fmt.Fprintln(w, "  No bills found.")
		rule(w, "=", 84)
		return
	}
	fmt.Fprintf(w, "  %-12s %-36s %10s %10s %10s\n", "DATE", "ID", "TOTAL", "PAID", "BALANCE")
	rule(w, "-", 84)
	for _, b := range result.Bills {
		fmt.Fprintf(w, "  %-12s %-36s %10s %10s %10s\n", b.BillDate.Format(dateLayout), b.ID,
			b.TotalAmount.StringFixed(2), b.PaidAmount.StringFixed(2), b.Balance().StringFixed(2))
	}
	rule(w, "=", 84)
}

func printBalances(w io.Writer, result *app.BalancesResult) {
	header(w, "CLIENT BALANCES", 72)
	fmt.Fprintf(w, "  %-30s %12s %12s %12s\n", "CLIENT", "BILLED", "PAID", "BALANCE")
	rule(w, "-", 72)
	for _, b := range result.Balances {
		fmt.Fprintf(w, "  %-30s %12s %12s %12s\n", b.ClientName,
			b.Billed.StringFixed(2), b.Paid.StringFixed(2), b.Balance.StringFixed(2))
	}
	rule(w, "-", 72)
	fmt.Fprintf(w, "  %-56s %12s\n", "OUTSTANDING", result.Outstanding.StringFixed(2))
	rule(w, "=", 72)
}

func printProfit(w io.Writer, result *app.ProfitResult) {
	header(w, "PRODUCT PROFIT", 76)
	fmt.Fprintf(w, "  %-28s %10s %11s %11s %11s\n", "PRODUCT", "QTY", "REVENUE", "COST", "PROFIT")
	rule(w, "-", 76)
	for _, p := range result.Products {
		fmt.Fprintf(w, "  %-28s %10s %11s %11s %11s\n", p.ProductName, p.Quantity.String(),
			p.Revenue.StringFixed(2), p.Cost.StringFixed(2), p.Profit.StringFixed(2))
	}
	rule(w, "-", 76)
	fmt.Fprintf(w, "  %-39s %11s %11s %11s\n", "TOTAL",
		result.Revenue.StringFixed(2), result.Cost.StringFixed(2), result.Profit.StringFixed(2))
	rule(w, "=", 76)
}

func printPurchases(w io.Writer, result *app.PurchaseSummaryResult) {
	header(w, "PURCHASE SUMMARY", 60)
	for _, t := range result.Totals {
		fmt.Fprintf(w, "  %-40s %12s\n", t.ProductName, t.Quantity.String())
	}
	rule(w, "=", 60)
}

func printVelocity(w io.Writer, result *app.VelocityResult) {
	header(w, fmt.Sprintf("STOCK VELOCITY  %d days to %s", result.WindowDays, result.AsOf.Format(dateLayout)), 80)
	fmt.Fprintf(w, "  %-26s %-5s %10s %10s %10s %10s\n", "PRODUCT", "CLASS", "ON HAND", "SOLD", "PER DAY", "DAYS LEFT")
	rule(w, "-", 80)
	for _, v := range result.Products {
		left := v.DaysRemaining.StringFixed(1)
		if v.Infinite {
			left = "-"
		}
		fmt.Fprintf(w, "  %-26s %-5s %10s %10s %10s %10s\n", v.ProductName, v.Class,
			v.OnHand.String(), v.SoldQty.String(), v.DailyRate.StringFixed(2), left)
	}
	rule(w, "=", 80)
}

func printSyncStatus(w io.Writer, result *app.SyncStatusResult) {
	st := result.Status
	fmt.Fprintln(w, result.Message)
	fmt.Fprintf(w, "  pending %d, failed %d, dead %d\n", st.Pending, st.Failed, st.Dead)
	if st.LastSync != nil {
		fmt.Fprintf(w, "  last sync %s\n", st.LastSync.Format("2006-01-02 15:04:05"))
	}
	if st.LastError != "" {
		fmt.Fprintf(w, "  last error: %s\n", st.LastError)
	}
}
