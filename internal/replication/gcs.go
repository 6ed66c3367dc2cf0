package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"demand-ledger/internal/core"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSGateway writes JSON snapshots into a Cloud Storage bucket:
//
//	<prefix>/bills/latest.json
//	<prefix>/clients/latest.json
//	<prefix>/batches/<batch id>.json
//	<prefix>/batches/index.json
type GCSGateway struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSGateway uses Application Default Credentials unless credentialsJSON is set.
func NewGCSGateway(ctx context.Context, bucket, prefix, credentialsJSON string) (*GCSGateway, error) {
	if bucket == "" {
		return nil, fmt.Errorf("GCS bucket is required")
	}
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("gcs bucket %q not found or not accessible: %w", bucket, err)
	}
	return &GCSGateway{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (g *GCSGateway) Close() error { return g.client.Close() }

func (g *GCSGateway) SyncBills(ctx context.Context, bills []core.Bill) error {
	return g.writeJSON(ctx, "bills/latest.json", map[string]any{"bills": bills, "exported_at": time.Now().UTC()})
}

func (g *GCSGateway) SyncClients(ctx context.Context, clients []core.Client) error {
	return g.writeJSON(ctx, "clients/latest.json", map[string]any{"clients": clients, "exported_at": time.Now().UTC()})
}

func (g *GCSGateway) BackupDemandBatch(ctx context.Context, snap BatchSnapshot) error {
	return g.writeJSON(ctx, batchObject(snap), snap)
}

func (g *GCSGateway) BackupAllDemandBatches(ctx context.Context, snaps []BatchSnapshot) error {
	index := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		if err := g.writeJSON(ctx, batchObject(snap), snap); err != nil {
			return err
		}
		index = append(index, snap.Batch.ID.String())
	}
	return g.writeJSON(ctx, "batches/index.json", map[string]any{"batches": index, "exported_at": time.Now().UTC()})
}

func batchObject(snap BatchSnapshot) string {
	return "batches/" + snap.Batch.ID.String() + ".json"
}

func (g *GCSGateway) writeJSON(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	obj := path.Join(g.prefix, name)
	w := g.client.Bucket(g.bucket).Object(obj).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", g.bucket, obj, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to write gs://%s/%s: %w", g.bucket, obj, err)
	}
	return nil
}
