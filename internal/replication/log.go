package replication

import (
	"context"

	"demand-ledger/internal/core"

	"github.com/sirupsen/logrus"
)

// LogGateway records what would have been pushed. It is the default when no
// remote is configured.
type LogGateway struct {
	log logrus.FieldLogger
}

func NewLogGateway(log logrus.FieldLogger) *LogGateway {
	return &LogGateway{log: log.WithField("gateway", "log")}
}

func (g *LogGateway) SyncBills(_ context.Context, bills []core.Bill) error {
	g.log.WithField("bills", len(bills)).Info("bills snapshot")
	return nil
}

func (g *LogGateway) SyncClients(_ context.Context, clients []core.Client) error {
	g.log.WithField("clients", len(clients)).Info("clients snapshot")
	return nil
}

func (g *LogGateway) BackupDemandBatch(_ context.Context, snap BatchSnapshot) error {
	g.log.WithFields(logrus.Fields{
		"batch_id": snap.Batch.ID,
		"date":     snap.Batch.DemandDate.Format("2006-01-02"),
		"entries":  len(snap.Entries),
		"closed":   snap.Batch.Closed,
	}).Info("batch snapshot")
	return nil
}

func (g *LogGateway) BackupAllDemandBatches(_ context.Context, snaps []BatchSnapshot) error {
	g.log.WithField("batches", len(snaps)).Info("all batches snapshot")
	return nil
}
