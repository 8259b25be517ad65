package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Total int `json:"total"`
}

func newTestCache(t *testing.T) (*Cache, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	return NewForTest(db, zap.NewNop()), mock
}

func TestGetJSONHit(t *testing.T) {
	c, mock := newTestCache(t)
	mock.ExpectGet("rec:1").SetVal(`{"total":5}`)

	var got envelope
	ok := c.GetJSON(context.Background(), "rec:1", &got)

	require.True(t, ok)
	assert.Equal(t, 5, got.Total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJSONMissIsFalse(t *testing.T) {
	c, mock := newTestCache(t)
	mock.ExpectGet("missing").RedisNil()

	var got envelope
	ok := c.GetJSON(context.Background(), "missing", &got)

	assert.False(t, ok)
}

func TestSetJSONSmallPayloadIsUncompressed(t *testing.T) {
	c, mock := newTestCache(t)
	mock.Regexp().ExpectSet("rec:1", `^\{.*\}$`, 5*time.Minute).SetVal("OK")

	ok := c.SetJSON(context.Background(), "rec:1", envelope{Total: 5}, 5*time.Minute)

	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetJSONLargePayloadIsCompressed(t *testing.T) {
	c, mock := newTestCache(t)
	big := envelope{Total: 1}
	padding := strings.Repeat("a", compressThreshold+1)
	mock.Regexp().ExpectSet("rec:big", `^\x01DEFLATE:`, time.Minute).SetVal("OK")

	ok := c.SetJSON(context.Background(), "rec:big", struct {
		Total int    `json:"total"`
		Pad   string `json:"pad"`
	}{big.Total, padding}, time.Minute)

	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReturnsCount(t *testing.T) {
	c, mock := newTestCache(t)
	mock.ExpectDel("rec:1").SetVal(1)

	n := c.Delete(context.Background(), "rec:1")

	assert.Equal(t, 1, n)
}

func TestCompressRoundTrip(t *testing.T) {
	raw := []byte(strings.Repeat("x", compressThreshold+100))

	compressed, err := maybeCompress(raw)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(compressed), compressedPrefix))

	decompressed, err := maybeDecompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, raw, decompressed)
}

func TestMaybeCompressBelowThresholdIsNoop(t *testing.T) {
	raw := []byte("short value")

	out, err := maybeCompress(raw)

	require.NoError(t, err)
	assert.Equal(t, raw, out)
}
