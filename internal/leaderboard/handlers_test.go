package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raidwatch/raidwatch/internal/identity"
	"github.com/raidwatch/raidwatch/internal/report"
)

func setupRouter(t *testing.T, source ReportSource) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	NewHandler(source).RegisterRoutes(r.Group("/v1"))
	return r
}

func seedReports(t *testing.T, store *report.MemoryStore, tag string, n int) {
	t.Helper()
	ctx := context.Background()
	canonical, err := identity.NormalizeTag(tag)
	require.NoError(t, err)
	raider, err := store.UpsertRaider(ctx, canonical, tag)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, store.CreateReport(ctx, &report.Report{
			RaiderID:  raider.ID,
			Reason:    report.ReasonBetrayal,
			CreatedAt: time.Now().UTC().Add(-time.Duration(i) * time.Minute),
		}))
	}
}

func TestGetLeaderboard(t *testing.T) {
	store := report.NewMemoryStore()
	seedReports(t, store, "Ghost#0420", 3)
	seedReports(t, store, "Rat#0001", 1)

	r := setupRouter(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/leaderboard", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Leaderboard []*Entry `json:"leaderboard"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Leaderboard, 2)
	assert.Equal(t, "ghost#0420", resp.Leaderboard[0].Tag)
	assert.Equal(t, "Ghost#0420", resp.Leaderboard[0].DisplayTag)
	assert.Equal(t, 3, resp.Leaderboard[0].Count)
	assert.Equal(t, "ghost-0420", resp.Leaderboard[0].Slug)
}

func TestGetLeaderboard_LimitClamped(t *testing.T) {
	store := report.NewMemoryStore()
	for _, tag := range []string{"A#0001", "B#0002", "C#0003"} {
		seedReports(t, store, tag, 1)
	}

	r := setupRouter(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/leaderboard?limit=2", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Leaderboard []*Entry `json:"leaderboard"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Leaderboard, 2)
}

func TestGetLeaderboard_InvalidLimit(t *testing.T) {
	r := setupRouter(t, report.NewMemoryStore())

	for _, limit := range []string{"0", "-3", "abc"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/leaderboard?limit="+limit, nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
		assert.Contains(t, w.Body.String(), "validation_error")
	}
}

func TestGetLeaderboard_Empty(t *testing.T) {
	r := setupRouter(t, report.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/leaderboard", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"leaderboard":[]}`, w.Body.String())
}

type failingSource struct{}

func (failingSource) ListRecent(context.Context, int) ([]*report.RecentReport, error) {
	return nil, errors.New("connection refused")
}

func TestGetLeaderboard_StoreUnavailable(t *testing.T) {
	r := setupRouter(t, failingSource{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/leaderboard", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "store_unavailable")
}
