package stats

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raidwatch/raidwatch/internal/identity"
	"github.com/raidwatch/raidwatch/internal/report"
	"github.com/raidwatch/raidwatch/internal/validation"
)

func setupRouter(t *testing.T) (*gin.Engine, *report.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := report.NewMemoryStore()
	h := NewHandler(store)

	r := gin.New()
	v1 := r.Group("/v1")
	v1.Use(validation.SlugParamMiddleware())
	h.RegisterRoutes(v1)
	return r, store
}

func seedRaider(t *testing.T, store *report.MemoryStore, tag string) *report.Raider {
	t.Helper()
	canonical, err := identity.NormalizeTag(tag)
	require.NoError(t, err)
	raider, err := store.UpsertRaider(context.Background(), canonical, tag)
	require.NoError(t, err)
	return raider
}

func TestGetStats(t *testing.T) {
	r, store := setupRouter(t)
	raider := seedRaider(t, store, "Ghost#0420")

	require.NoError(t, store.CreateReport(context.Background(), &report.Report{
		RaiderID:  raider.ID,
		Reason:    report.ReasonBetrayal,
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/raiders/ghost-0420/stats?span=week", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Stats Series `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, SpanWeek, resp.Stats.Span)
	assert.Equal(t, 1, resp.Stats.Total)
	assert.Len(t, resp.Stats.Labels, 7)
	assert.Equal(t, "Today", resp.Stats.Labels[6])
}

func TestGetStats_DefaultsToWeek(t *testing.T) {
	r, store := setupRouter(t)
	seedRaider(t, store, "Ghost#0420")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/raiders/ghost-0420/stats", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Stats Series `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, SpanWeek, resp.Stats.Span)
	assert.Zero(t, resp.Stats.Total)
}

func TestGetStats_InvalidSpan(t *testing.T) {
	r, store := setupRouter(t)
	seedRaider(t, store, "Ghost#0420")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/raiders/ghost-0420/stats?span=year", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_error")
}

func TestGetStats_InvalidOffset(t *testing.T) {
	r, store := setupRouter(t)
	seedRaider(t, store, "Ghost#0420")

	for _, offset := range []string{"abc", "999"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/raiders/ghost-0420/stats?offset="+offset, nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, "offset=%s", offset)
	}
}

func TestGetStats_NegativeOffsetClamped(t *testing.T) {
	r, store := setupRouter(t)
	raider := seedRaider(t, store, "Ghost#0420")

	require.NoError(t, store.CreateReport(context.Background(), &report.Report{
		RaiderID:  raider.ID,
		Reason:    report.ReasonBetrayal,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}))

	// A negative offset behaves like the current window
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/raiders/ghost-0420/stats?span=week&offset=-3", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Stats Series `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Stats.Offset)
	assert.Equal(t, 1, resp.Stats.Total)
	assert.Equal(t, "Today", resp.Stats.Labels[6])
}

func TestGetStats_NotFound(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/raiders/nobody-0001/stats", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStats_PreviousWindowEmpty(t *testing.T) {
	r, store := setupRouter(t)
	raider := seedRaider(t, store, "Ghost#0420")

	// A report from right now is outside the offset=1 window
	require.NoError(t, store.CreateReport(context.Background(), &report.Report{
		RaiderID:  raider.ID,
		Reason:    report.ReasonBetrayal,
		CreatedAt: time.Now().UTC(),
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/raiders/ghost-0420/stats?span=week&offset=1", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Stats Series `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Stats.Total)
	assert.NotEqual(t, "Today", resp.Stats.Labels[6])
}
