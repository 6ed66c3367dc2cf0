package repl

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"demand-ledger/internal/app"
	"demand-ledger/internal/core"
	"demand-ledger/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"stock list", []string{"stock", "list"}},
		{`product add "Milk 500ml" --price 28 --cost 24`, []string{"product", "add", "Milk 500ml", "--price", "28", "--cost", "24"}},
		{"client add 'Hotel  Ganesh'", []string{"client", "add", "Hotel  Ganesh"}},
		{`client add ""`, []string{"client", "add", ""}},
		{"  batch\ttoday  ", []string{"batch", "today"}},
	}
	for _, tt := range tests {
		got, err := splitArgs(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}

	_, err := splitArgs(`product add "Milk`)
	assert.ErrorIs(t, err, errUnterminatedQuote)
}

func TestRunExecutesCommandsUntilExit(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := memory.New()
	svc := app.NewAppService(app.Deps{
		Store:              store,
		Outbox:             store,
		Clock:              core.NewFixedClock(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC), time.UTC),
		Thresholds:         core.VelocityThresholds{FastQty: decimal.NewFromInt(10), SlowQty: decimal.NewFromInt(1)},
		VelocityWindowDays: 30,
		Log:                logger,
	})

	in := strings.NewReader(strings.Join([]string{
		`product add --price 28 --cost 24 "Milk 500ml"`,
		"stock adjust not-a-uuid 5",
		"product list",
		"exit",
		"product list",
	}, "\n"))
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), svc, nil, in, &out))

	text := out.String()
	assert.Contains(t, text, "Product Milk 500ml added")
	assert.Contains(t, text, "error: invalid input: product_id must be a UUID")
	assert.Equal(t, 1, strings.Count(text, "PRODUCTS"), "commands after exit are not run")
}
