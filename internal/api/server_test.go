package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobsentry/jobsentry/internal/scraper"
	"github.com/jobsentry/jobsentry/internal/storage/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	run := func(_ context.Context, site scraper.Site) scraper.Run {
		return scraper.Run{SiteID: site.ID, Status: scraper.RunStatusSuccess}
	}
	return NewServer(store, run, zap.NewNop()), store
}

func addTestSite(t *testing.T, store *memory.Store) string {
	t.Helper()
	id, err := store.AddSite(context.Background(), scraper.Site{
		Name: "acme",
		URL:  "https://acme.example/jobs",
		Selectors: scraper.Selectors{
			Container: "div.job",
			Title:     "h2",
		},
		Interval: time.Hour,
		Enabled:  true,
	})
	require.NoError(t, err)
	return id
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAddSite_ThenList(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	body := `{
		"name": "acme",
		"url": "https://acme.example/jobs",
		"selectors": {"container": "div.job", "title": "h2"},
		"interval_minutes": 60
	}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sites/", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		SiteID string `json:"site_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.SiteID)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sites/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Sites []scraper.Site `json:"sites"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Sites, 1)
	require.Equal(t, "acme", listed.Sites[0].Name)
}

func TestAddSite_RejectsMissingSelectors(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	body := `{"name": "acme", "url": "https://acme.example", "interval_minutes": 60}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sites/", strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnableDisableSite(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)
	id := addTestSite(t, store)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sites/"+id+"/disable", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	site, err := store.GetSite(context.Background(), id)
	require.NoError(t, err)
	require.False(t, site.Enabled)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sites/"+id+"/enable", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	site, err = store.GetSite(context.Background(), id)
	require.NoError(t, err)
	require.True(t, site.Enabled)
}

func TestScrapeSite_ReturnsRunSummary(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)
	id := addTestSite(t, store)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sites/"+id+"/scrape", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Run scraper.Run `json:"run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, scraper.RunStatusSuccess, resp.Run.Status)
	require.Equal(t, id, resp.Run.SiteID)
}

func TestScrapeSite_UnknownSiteIs404(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sites/nope/scrape", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStats_DefaultsAndValidation(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)
	require.NoError(t, store.SaveRun(context.Background(), scraper.Run{
		ID:      "r1",
		Started: time.Now().UTC(),
		Status:  scraper.RunStatusSuccess,
	}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Days  int              `json:"days"`
		Stats scraper.RunStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 7, resp.Days)
	require.Equal(t, 1, resp.Stats.Runs)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats?days=zero", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpointServes(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
