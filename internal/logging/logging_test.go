package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"demand-ledger/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New("warn", "json", &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	logger.Info("dropped")
	logging.LogError(logger, "web", "closeBatch", "batch close", map[string]string{"batch_id": "b1"}, errors.New("stock short"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "stock short", line["msg"])
	assert.Equal(t, "closeBatch", line["funcName"])
	assert.Equal(t, "error", line["level"])
	assert.NotNil(t, line["data"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := logging.New("loud", "json", nil)
	assert.Error(t, err)
}
