package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLoggerWritesJSONWithContextIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := New("wbi", "test", "debug")
	logger.SetOutput(&buf)

	ctx := WithRunID(WithRequestID(context.Background(), "req-1"), "run-1")
	logger.Error(ctx, "[FETCH] failed", Fields{"indicator": "SP.POP.TOTL"}, errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "[FETCH] failed", entry["message"])
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "wbi", entry["service"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "SP.POP.TOTL", entry["indicator"])
	assert.Equal(t, "boom", entry["error"])
}

func TestStructuredLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("wbi", "test", "warn")
	logger.SetOutput(&buf)

	logger.Info(context.Background(), "[FETCH] page", nil)
	assert.Zero(t, buf.Len())

	logger.SetLevel(logrus.DebugLevel)
	logger.WithFields(Fields{"page": 2}).Debug(context.Background(), "[FETCH] page", nil)
	assert.Contains(t, buf.String(), `"page":2`)
}

func TestNopDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error(context.Background(), "ignored", nil, errors.New("x"))
	assert.Empty(t, RequestID(context.Background()))
}
