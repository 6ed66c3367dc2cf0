// Package cli exposes the application service as one-shot terminal commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"demand-ledger/internal/app"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

// Pusher drains the replication outbox once. The server's worker satisfies it.
type Pusher interface {
	ProcessOnce(ctx context.Context) (int, error)
}

// NewApp builds the command tree. Flags go before positional arguments.
// push may be nil, in which case "sync push" only queues a full backup for
// the server to send.
func NewApp(svc app.ApplicationService, push Pusher, out io.Writer) *cli.App {
	c := &commands{svc: svc, push: push, out: out}
	return &cli.App{
		Name:            "demand",
		Usage:           "daily purchase demand, stock and billing",
		Writer:          out,
		ErrWriter:       out,
		HideHelpCommand: true,
		// Errors go back to the caller; the shell keeps running after one.
		ExitErrHandler:  func(*cli.Context, error) {},
		Commands: []*cli.Command{
			c.productCommand(),
			c.clientCommand(),
			c.stockCommand(),
			c.batchCommand(),
			c.billCommand(),
			c.reportCommand(),
			c.syncCommand(),
		},
	}
}

// Run executes a one-shot CLI command. args is os.Args.
func Run(ctx context.Context, svc app.ApplicationService, push Pusher, args []string) error {
	return NewApp(svc, push, os.Stdout).RunContext(ctx, args)
}

type commands struct {
	svc  app.ApplicationService
	push Pusher
	out  io.Writer
}

// arg returns the i-th positional argument or a usage error naming it.
func arg(c *cli.Context, i int, name string) (string, error) {
	if c.NArg() <= i {
		return "", cli.Exit(fmt.Sprintf("missing <%s>\nusage: %s %s", name, c.Command.HelpName, c.Command.ArgsUsage), 2)
	}
	return c.Args().Get(i), nil
}

func decimalArg(c *cli.Context, i int, name string) (decimal.Decimal, error) {
	raw, err := arg(c, i, name)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, cli.Exit(fmt.Sprintf("%s must be a number, got %q", name, raw), 2)
	}
	return d, nil
}

func decimalFlag(c *cli.Context, name string) (decimal.Decimal, error) {
	raw := c.String(name)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, cli.Exit(fmt.Sprintf("--%s must be a number, got %q", name, raw), 2)
	}
	return d, nil
}

func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "from", Usage: "first date (YYYY-MM-DD)"},
		&cli.StringFlag{Name: "to", Usage: "last date (YYYY-MM-DD)"},
	}
}

func dateRange(c *cli.Context) app.DateRangeRequest {
	return app.DateRangeRequest{From: c.String("from"), To: c.String("to")}
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (x *commands) productCommand() *cli.Command {
	priceFlags := []cli.Flag{
		&cli.StringFlag{Name: "price", Usage: "sale price", Required: true},
		&cli.StringFlag{Name: "cost", Usage: "cost price", Required: true},
	}
	return &cli.Command{
		Name:  "product",
		Usage: "manage the product catalog",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list products",
				Action: func(c *cli.Context) error {
					result, err := x.svc.ListProducts(c.Context)
					if err != nil {
						return err
					}
					printProducts(x.out, result)
					return nil
				},
			},
			{
				Name:      "add",
				Usage:     "add a product",
				ArgsUsage: "--price <n> --cost <n> <name>",
				Flags:     priceFlags,
				Action: func(c *cli.Context) error {
					name, err := arg(c, 0, "name")
					if err != nil {
						return err
					}
					price, err := decimalFlag(c, "price")
					if err != nil {
						return err
					}
					cost, err := decimalFlag(c, "cost")
					if err != nil {
						return err
					}
					result, err := x.svc.CreateProduct(c.Context, app.CreateProductRequest{Name: name, Price: price, CostPrice: cost})
					if err != nil {
						return err
					}
					fmt.Fprintf(x.out, "Product %s added: %s\n", result.Product.Name, result.Product.ID)
					return nil
				},
			},
			{
				Name:      "prices",
				Usage:     "change sale and cost price",
				ArgsUsage: "--price <n> --cost <n> <product-id>",
				Flags:     priceFlags,
				Action: func(c *cli.Context) error {
					id, err := arg(c, 0, "product-id")
					if err != nil {
						return err
					}
					price, err := decimalFlag(c, "price")
					if err != nil {
						return err
					}
					cost, err := decimalFlag(c, "cost")
					if err != nil {
						return err
					}
					result, err := x.svc.UpdateProductPrices(c.Context, app.UpdatePricesRequest{ProductID: id, Price: price, CostPrice: cost})
					if err != nil {
						return err
					}
					fmt.Fprintf(x.out, "%s now sells at %s (cost %s)\n", result.Product.Name,
						result.Product.Price.StringFixed(2), result.Product.CostPrice.StringFixed(2))
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "remove a product from the catalog",
				ArgsUsage: "<product-id>",
				Action: func(c *cli.Context) error {
					id, err := arg(c, 0, "product-id")
					if err != nil {
						return err
					}
					if err := x.svc.DeleteProduct(c.Context, id); err != nil {
						return err
					}
					fmt.Fprintln(x.out, "Product deleted.")
					return nil
				},
			},
		},
	}
}

func (x *commands) clientCommand() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "manage clients",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list clients",
				Action: func(c *cli.Context) error {
					result, err := x.svc.ListClients(c.Context)
					if err != nil {
						return err
					}
					printClients(x.out, result)
					return nil
				},
			},
			{
				Name:      "add",
				Usage:     "add a client",
				ArgsUsage: "[--phone <p>] <name>",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "phone"}},
				Action: func(c *cli.Context) error {
					name, err := arg(c, 0, "name")
					if err != nil {
						return err
					}
					result, err := x.svc.CreateClient(c.Context, app.CreateClientRequest{Name: name, Phone: c.String("phone")})
					if err != nil {
						return err
					}
					fmt.Fprintf(x.out, "Client %s added: %s\n", result.Client.Name, result.Client.ID)
					return nil
				},
			},
		},
	}
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func (x *commands) stockCommand() *cli.Command {
	change := func(apply func(context.Context, app.StockChangeRequest) (*app.StockChangeResult, error), qtyName string) cli.ActionFunc {
		return func(c *cli.Context) error {
			id, err := arg(c, 0, "product-id")
			if err != nil {
				return err
			}
			qty, err := decimalArg(c, 1, qtyName)
			if err != nil {
				return err
			}
			result, err := apply(c.Context, app.StockChangeRequest{ProductID: id, Quantity: qty})
			if err != nil {
				return err
			}
			fmt.Fprintf(x.out, "On hand: %s\n", result.Quantity.String())
			return nil
		}
	}
	return &cli.Command{
		Name:  "stock",
		Usage: "view and correct stock",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "show on-hand quantities",
				Action: func(c *cli.Context) error {
					result, err := x.svc.GetStockLevels(c.Context)
					if err != nil {
						return err
					}
					printStockLevels(x.out, result)
					return nil
				},
			},
			{
				Name:      "adjust",
				Usage:     "add (or with a negative delta remove) stock",
				ArgsUsage: "<product-id> <delta>",
				Action:    change(x.svc.AdjustStock, "delta"),
			},
			{
				Name:      "set",
				Usage:     "overwrite the on-hand quantity after a count",
				ArgsUsage: "<product-id> <quantity>",
				Action:    change(x.svc.SetStock, "quantity"),
			},
		},
	}
}

// ── Demand batches ────────────────────────────────────────────────────────────

func (x *commands) batchCommand() *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "record and close daily demand",
		Subcommands: []*cli.Command{
			{
				Name:  "today",
				Usage: "show (creating if needed) the batch for a day",
				Flags: []cli.Flag{&cli.StringFlag{Name: "date", Usage: "YYYY-MM-DD, defaults to the business today"}},
				Action: func(c *cli.Context) error {
					result, err := x.svc.GetOrCreateBatch(c.Context, c.String("date"))
					if err != nil {
						return err
					}
					printBatch(x.out, result.Batch)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "list batches",
				Flags: rangeFlags(),
				Action: func(c *cli.Context) error {
					result, err := x.svc.ListBatches(c.Context, dateRange(c))
					if err != nil {
						return err
					}
					printBatches(x.out, result)
					return nil
				},
			},
			{
				Name:      "add",
				Usage:     "record a client's demand for a product",
				ArgsUsage: "<batch-id> <client-id> <product-id> <quantity>",
				Action: func(c *cli.Context) error {
					var ids [3]string
					for i, name := range []string{"batch-id", "client-id", "product-id"} {
						v, err := arg(c, i, name)
						if err != nil {
							return err
						}
						ids[i] = v
					}
					qty, err := decimalArg(c, 3, "quantity")
					if err != nil {
						return err
					}
					result, err := x.svc.AddDemandEntry(c.Context, app.AddEntryRequest{
						BatchID: ids[0], ClientID: ids[1], ProductID: ids[2], Quantity: qty,
					})
					if err != nil {
						return err
					}
					fmt.Fprintf(x.out, "Entry %s recorded.\n", result.Entry.ID)
					return nil
				},
			},
			{
				Name:      "totals",
				Usage:     "per-product purchase totals",
				ArgsUsage: "<batch-id>",
				Action: func(c *cli.Context) error {
					id, err := arg(c, 0, "batch-id")
					if err != nil {
						return err
					}
					result, err := x.svc.GetBatchTotals(c.Context, id)
					if err != nil {
						return err
					}
					printTotals(x.out, result)
					return nil
				},
			},
			{
				Name:      "details",
				Usage:     "per-client breakdown",
				ArgsUsage: "<batch-id>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "all", Usage: "include deleted entries"}},
				Action: func(c *cli.Context) error {
					id, err := arg(c, 0, "batch-id")
					if err != nil {
						return err
					}
					result, err := x.svc.GetBatchDetails(c.Context, id, c.Bool("all"))
					if err != nil {
						return err
					}
					printDetails(x.out, result)
					return nil
				},
			},
			{
				Name:      "stats",
				Usage:     "counts for a batch",
				ArgsUsage: "<batch-id>",
				Action: func(c *cli.Context) error {
					id, err := arg(c, 0, "batch-id")
					if err != nil {
						return err
					}
					result, err := x.svc.GetBatchStats(c.Context, id)
					if err != nil {
						return err
					}
					printStats(x.out, result)
					return nil
				},
			},
			{
				Name:      "close",
				Usage:     "close a batch",
				ArgsUsage: "<batch-id>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "no-deduct", Usage: "close without touching stock"}},
				Action: func(c *cli.Context) error {
					id, err := arg(c, 0, "batch-id")
					if err != nil {
						return err
					}
					result, err := x.svc.CloseBatch(c.Context, app.CloseBatchRequest{BatchID: id, DeductStock: !c.Bool("no-deduct")})
					if err != nil {
						return err
					}
					printBatch(x.out, result.Batch)
					return nil
				},
			},
			{
				Name:      "reopen",
				Usage:     "reopen a closed batch and return its deductions",
				ArgsUsage: "<batch-id>",
				Action: func(c *cli.Context) error {
					id, err := arg(c, 0, "batch-id")
					if err != nil {
						return err
					}
					result, err := x.svc.ReopenBatch(c.Context, id)
					if err != nil {
						return err
					}
					printBatch(x.out, result.Batch)
					return nil
				},
			},
			{
				Name:      "export",
				Usage:     "write the batch as an XLSX workbook",
				ArgsUsage: "<batch-id>",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "file name, defaults to demand-<date>.xlsx"}},
				Action: func(c *cli.Context) error {
					id, err := arg(c, 0, "batch-id")
					if err != nil {
						return err
					}
					result, err := x.svc.ExportBatch(c.Context, id)
					if err != nil {
						return err
					}
					name := c.String("out")
					if name == "" {
						name = result.Filename
					}
					if err := os.WriteFile(name, result.Data, 0o644); err != nil {
						return fmt.Errorf("failed to write %s: %w", name, err)
					}
					fmt.Fprintf(x.out, "Wrote %s\n", name)
					return nil
				},
			},
		},
	}
}

// ── Billing ───────────────────────────────────────────────────────────────────

func (x *commands) billCommand() *cli.Command {
	return &cli.Command{
		Name:  "bill",
		Usage: "list bills and record payments",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list bills",
				Flags: append(rangeFlags(),
					&cli.StringFlag{Name: "client", Usage: "client id"},
					&cli.BoolFlag{Name: "all", Usage: "include deleted bills"},
				),
				Action: func(c *cli.Context) error {
					result, err := x.svc.ListBills(c.Context, app.ListBillsRequest{
						DateRangeRequest: dateRange(c),
						ClientID:         c.String("client"),
						IncludeDeleted:   c.Bool("all"),
					})
					if err != nil {
						return err
					}
					printBills(x.out, result)
					return nil
				},
			},
			{
				Name:      "pay",
				Usage:     "record a payment against a bill",
				ArgsUsage: "<bill-id> <amount>",
				Action: func(c *cli.Context) error {
					id, err := arg(c, 0, "bill-id")
					if err != nil {
						return err
					}
					amount, err := decimalArg(c, 1, "amount")
					if err != nil {
						return err
					}
					result, err := x.svc.RecordPayment(c.Context, app.PaymentRequest{BillID: id, Amount: amount})
					if err != nil {
						return err
					}
					fmt.Fprintf(x.out, "Balance due: %s\n", result.Balance.StringFixed(2))
					return nil
				},
			},
		},
	}
}

// ── Reports ───────────────────────────────────────────────────────────────────

func (x *commands) reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "profit, purchases, balances and stock velocity",
		Subcommands: []*cli.Command{
			{
				Name:  "velocity",
				Usage: "how fast each product sells and how long stock lasts",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "as-of", Usage: "last day of the window (YYYY-MM-DD)"},
					&cli.IntFlag{Name: "window", Usage: "window length in days"},
				},
				Action: func(c *cli.Context) error {
					result, err := x.svc.StockVelocity(c.Context, app.VelocityRequest{AsOf: c.String("as-of"), WindowDays: c.Int("window")})
					if err != nil {
						return err
					}
					printVelocity(x.out, result)
					return nil
				},
			},
			{
				Name:  "balances",
				Usage: "outstanding balance per client",
				Action: func(c *cli.Context) error {
					result, err := x.svc.ClientBalances(c.Context)
					if err != nil {
						return err
					}
					printBalances(x.out, result)
					return nil
				},
			},
			{
				Name:  "profit",
				Usage: "revenue, cost and profit per product",
				Flags: rangeFlags(),
				Action: func(c *cli.Context) error {
					result, err := x.svc.ProductProfit(c.Context, dateRange(c))
					if err != nil {
						return err
					}
					printProfit(x.out, result)
					return nil
				},
			},
			{
				Name:  "purchases",
				Usage: "purchased quantity per product over closed batches",
				Flags: rangeFlags(),
				Action: func(c *cli.Context) error {
					result, err := x.svc.PurchaseSummary(c.Context, dateRange(c))
					if err != nil {
						return err
					}
					printPurchases(x.out, result)
					return nil
				},
			},
		},
	}
}

// ── Sync ──────────────────────────────────────────────────────────────────────

func (x *commands) syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "replication status and manual push",
		Subcommands: []*cli.Command{
			{
				Name:  "status",
				Usage: "show what is waiting to sync",
				Action: func(c *cli.Context) error {
					result, err := x.svc.SyncStatus(c.Context)
					if err != nil {
						return err
					}
					printSyncStatus(x.out, result)
					return nil
				},
			},
			{
				Name:  "push",
				Usage: "queue a full backup and, when possible, send it now",
				Action: func(c *cli.Context) error {
					if err := x.svc.RequestFullBackup(c.Context); err != nil {
						return err
					}
					if x.push == nil {
						fmt.Fprintln(x.out, "Full backup queued.")
						return nil
					}
					n, err := x.push.ProcessOnce(c.Context)
					if err != nil {
						return err
					}
					result, err := x.svc.SyncStatus(c.Context)
					if err != nil {
						return err
					}
					fmt.Fprintf(x.out, "Pushed %d changes. %s\n", n, result.Message)
					return nil
				},
			},
		},
	}
}
