package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"demand-ledger/internal/core"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Message is the Pub/Sub payload. Kind matches the outbox task kind.
type Message struct {
	Kind       core.SyncKind   `json:"kind"`
	RefID      string          `json:"ref_id,omitempty"`
	ExportedAt time.Time       `json:"exported_at"`
	Payload    json.RawMessage `json:"payload"`
}

// PubSubGateway publishes each snapshot as one message and waits for the
// server ack before reporting success.
type PubSubGateway struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewPubSubGateway(ctx context.Context, projectID, topicID, credentialsJSON string, createTopic bool) (*PubSubGateway, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	if createTopic {
		ok, err := topic.Exists(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to check topic %q: %w", topicID, err)
		}
		if !ok {
			if topic, err = client.CreateTopic(ctx, topicID); err != nil {
				client.Close()
				return nil, fmt.Errorf("create topic %q: %w", topicID, err)
			}
		}
	}
	return &PubSubGateway{client: client, topic: topic}, nil
}

func (g *PubSubGateway) Close() error {
	g.topic.Stop()
	return g.client.Close()
}

func (g *PubSubGateway) SyncBills(ctx context.Context, bills []core.Bill) error {
	return g.publish(ctx, core.SyncKindBills, "", bills)
}

func (g *PubSubGateway) SyncClients(ctx context.Context, clients []core.Client) error {
	return g.publish(ctx, core.SyncKindClients, "", clients)
}

func (g *PubSubGateway) BackupDemandBatch(ctx context.Context, snap BatchSnapshot) error {
	return g.publish(ctx, core.SyncKindBatch, snap.Batch.ID.String(), snap)
}

func (g *PubSubGateway) BackupAllDemandBatches(ctx context.Context, snaps []BatchSnapshot) error {
	return g.publish(ctx, core.SyncKindAllBatches, "", snaps)
}

func (g *PubSubGateway) publish(ctx context.Context, kind core.SyncKind, refID string, v any) error {
	data, err := encodeMessage(kind, refID, v)
	if err != nil {
		return err
	}
	res := g.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"kind": string(kind), "ref_id": refID},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish %s: %w", kind, err)
	}
	return nil
}

func encodeMessage(kind core.SyncKind, refID string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	return json.Marshal(Message{Kind: kind, RefID: refID, ExportedAt: time.Now().UTC(), Payload: payload})
}
