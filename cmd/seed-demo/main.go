// seed-demo fills an empty database with a small catalog, a few clients,
// opening stock and today's demand so the API and CLI have something to show.
//
// Usage: go run ./cmd/seed-demo
package main

import (
	"context"
	"os"

	"demand-ledger/internal/app"
	"demand-ledger/internal/bootstrap"
	"demand-ledger/internal/config"
	"demand-ledger/internal/logging"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type demoProduct struct {
	name        string
	price, cost int64
	stock       int64
}

var products = []demoProduct{
	{"Milk 500ml", 28, 24, 120},
	{"Curd 1kg", 80, 62, 40},
	{"Paneer 200g", 90, 72, 25},
	{"Butter 100g", 56, 47, 30},
	{"Ghee 500ml", 320, 280, 12},
}

var clients = []string{"Hotel Ganesh", "Anand Stores", "Sri Sai Mess", "Royal Bakery"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, "text", os.Stderr)
	if err != nil {
		logrus.Fatalf("logging: %v", err)
	}
	ctx := context.Background()

	rt, err := bootstrap.Open(ctx, cfg, logger, bootstrap.Options{Migrate: true})
	if err != nil {
		logger.WithError(err).Fatal("startup failed")
	}
	defer rt.Close()
	svc := rt.Service

	existing, err := svc.ListProducts(ctx)
	if err != nil {
		logger.WithError(err).Fatal("failed to list products")
	}
	if len(existing.Products) > 0 {
		logger.Info("catalog is not empty; nothing to seed")
		return
	}

	logger.Info("Creating products and opening stock...")
	productIDs := make([]string, 0, len(products))
	for _, p := range products {
		res, err := svc.CreateProduct(ctx, app.CreateProductRequest{
			Name:      p.name,
			Price:     decimal.NewFromInt(p.price),
			CostPrice: decimal.NewFromInt(p.cost),
		})
		if err != nil {
			logger.WithError(err).Fatalf("failed to create %s", p.name)
		}
		id := res.Product.ID.String()
		productIDs = append(productIDs, id)
		if _, err := svc.SetStock(ctx, app.StockChangeRequest{ProductID: id, Quantity: decimal.NewFromInt(p.stock)}); err != nil {
			logger.WithError(err).Fatalf("failed to set stock for %s", p.name)
		}
	}

	logger.Info("Creating clients...")
	clientIDs := make([]string, 0, len(clients))
	for _, name := range clients {
		res, err := svc.CreateClient(ctx, app.CreateClientRequest{Name: name})
		if err != nil {
			logger.WithError(err).Fatalf("failed to create client %s", name)
		}
		clientIDs = append(clientIDs, res.Client.ID.String())
	}

	logger.Info("Recording today's demand...")
	batch, err := svc.GetOrCreateBatch(ctx, "")
	if err != nil {
		logger.WithError(err).Fatal("failed to open today's batch")
	}
	for i, cid := range clientIDs {
		for j, pid := range productIDs {
			if (i+j)%2 == 1 {
				continue
			}
			qty := decimal.NewFromInt(int64(2 + (i*3+j)%5))
			if _, err := svc.AddDemandEntry(ctx, app.AddEntryRequest{
				BatchID: batch.Batch.ID.String(), ClientID: cid, ProductID: pid, Quantity: qty,
			}); err != nil {
				logger.WithError(err).Fatal("failed to add demand entry")
			}
		}
	}

	logger.Info("Creating a sample bill...")
	bill, err := svc.CreateBill(ctx, app.CreateBillRequest{
		ClientID: clientIDs[0],
		Items: []app.BillItemInput{
			{ProductID: productIDs[0], Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(products[0].price)},
			{ProductID: productIDs[2], Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(products[2].price)},
		},
		Paid: decimal.NewFromInt(100),
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create bill")
	}

	if rt.Worker != nil {
		if _, err := rt.Worker.ProcessOnce(ctx); err != nil {
			logger.WithError(err).Warn("initial sync failed; the server will retry")
		}
	}
	logger.WithFields(logrus.Fields{
		"batch_id": batch.Batch.ID,
		"bill_id":  bill.Bill.ID,
		"balance":  bill.Balance.StringFixed(2),
	}).Info("[DONE] demo data seeded")
}
