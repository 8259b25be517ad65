package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchlistRequiresAuth(t *testing.T) {
	h := newTestHarness(t)

	rec := h.do(t, "POST", "/watchlist", `{"tmdb_id":1,"content_type":"movie"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddThenListWatchlistEntry(t *testing.T) {
	h := newTestHarness(t)
	auth := authHeader(t, "5")

	addRec := h.do(t, "POST", "/watchlist", `{"tmdb_id":1,"content_type":"movie"}`, auth)
	require.Equal(t, http.StatusCreated, addRec.Code)

	listRec := h.do(t, "GET", "/watchlist", "", auth)
	require.Equal(t, http.StatusOK, listRec.Code)
	env := decodeEnvelope(t, listRec.Body.Bytes())
	data := env["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["total"])
}

func TestUpdateWatchlistStatus(t *testing.T) {
	h := newTestHarness(t)
	auth := authHeader(t, "5")
	require.Equal(t, http.StatusCreated, h.do(t, "POST", "/watchlist", `{"tmdb_id":1,"content_type":"movie"}`, auth).Code)

	rec := h.do(t, "PATCH", "/watchlist/status",
		`{"tmdb_id":1,"content_type":"movie","status":"watching"}`, auth)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateWatchlistStatusMissingEntryReturnsNotFound(t *testing.T) {
	h := newTestHarness(t)
	auth := authHeader(t, "5")

	rec := h.do(t, "PATCH", "/watchlist/status",
		`{"tmdb_id":999,"content_type":"movie","status":"watching"}`, auth)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
