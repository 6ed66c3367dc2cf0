package bootstrap_test

import (
	"context"
	"testing"

	"demand-ledger/internal/app"
	"demand-ledger/internal/bootstrap"
	"demand-ledger/internal/config"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(t *testing.T, syncEnabled string) *config.Config {
	t.Helper()
	t.Setenv("STORE", "memory")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SYNC_ENABLED", syncEnabled)
	t.Setenv("BUSINESS_TIMEZONE", "UTC")
	for _, k := range []string{"GCS_BUCKET", "PUBSUB_PROJECT_ID", "PUBSUB_TOPIC"} {
		t.Setenv(k, "")
	}
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	return cfg
}

func TestOpenMemoryRuntimeSyncsThroughLogGateway(t *testing.T) {
	logger, hook := test.NewNullLogger()
	ctx := context.Background()

	rt, err := bootstrap.Open(ctx, memoryConfig(t, "true"), logger, bootstrap.Options{Migrate: true})
	require.NoError(t, err)
	defer rt.Close()

	require.NotNil(t, rt.Worker)
	assert.Nil(t, rt.Postgres)
	assert.NotNil(t, rt.Pusher())

	_, err = rt.Service.CreateClient(ctx, app.CreateClientRequest{Name: "Lakshmi Tiffins"})
	require.NoError(t, err)

	n, err := rt.Worker.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, err := rt.Service.SyncStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "all changes synced", st.Message)

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Message == "clients snapshot" {
			logged = true
		}
	}
	assert.True(t, logged, "log gateway records the push")
}

func TestOpenWithoutSync(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rt, err := bootstrap.Open(context.Background(), memoryConfig(t, "false"), logger, bootstrap.Options{})
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.Worker)
	assert.Nil(t, rt.Pusher())
	require.NoError(t, rt.Service.RequestFullBackup(context.Background()))

	st, err := rt.Service.SyncStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Status.Disabled)
	assert.Equal(t, 3, st.Status.Pending)
	assert.Equal(t, "sync is off; changes are saved on this device only", st.Message)
}
