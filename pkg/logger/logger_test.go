package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContextAddsRequestAndCaller(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: InfoLevel, Output: &buf})

	ctx := WithRequestID(context.Background(), "rid-1")
	ctx = WithAccount(ctx, "acc-1", "hospital")
	l.WithContext(ctx).Info("alert updated")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "rid-1", line["request_id"])
	assert.Equal(t, "acc-1", line["account_id"])
	assert.Equal(t, "hospital", line["role"])
	assert.Equal(t, "rid-1", RequestID(ctx))
}

func TestWithContextWithoutFields(t *testing.T) {
	l := NewNop()
	assert.Same(t, l, l.WithContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("loud"))
	assert.Equal(t, "debug", ParseLevel("debug").String())
}
