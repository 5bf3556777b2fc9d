package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/jobsentry/jobsentry/internal/scraper"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewStoreWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func TestUpsertJob_InsertReportsTrue(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	rec := scraper.JobRecord{
		Fingerprint: "fp-1",
		SiteID:      "11111111-1111-1111-1111-111111111111",
		Title:       "Go Engineer",
		Company:     "Acme",
		URL:         "https://acme.example/jobs/1",
		FirstSeen:   now,
		LastSeen:    now,
	}

	mock.ExpectQuery("INSERT INTO jobs").
		WithArgs(
			rec.Fingerprint, rec.SiteID, rec.Title, rec.Company, rec.Location,
			rec.URL, rec.Description, rec.Salary, rec.JobType, rec.PostedDate,
			rec.FirstSeen, rec.LastSeen,
		).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(true))

	inserted, err := store.UpsertJob(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertJob_ConflictReportsFalse(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	rec := scraper.JobRecord{
		Fingerprint: "fp-1",
		SiteID:      "11111111-1111-1111-1111-111111111111",
		Title:       "Go Engineer",
		FirstSeen:   now,
		LastSeen:    now,
	}

	mock.ExpectQuery("INSERT INTO jobs").
		WithArgs(
			rec.Fingerprint, rec.SiteID, rec.Title, rec.Company, rec.Location,
			rec.URL, rec.Description, rec.Salary, rec.JobType, rec.PostedDate,
			rec.FirstSeen, rec.LastSeen,
		).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(false))

	inserted, err := store.UpsertJob(context.Background(), rec)
	require.NoError(t, err)
	require.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindJob(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("fp-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.FindJob(context.Background(), "fp-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSite_ReturnsID(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	site := scraper.Site{
		Name: "acme",
		URL:  "https://acme.example/jobs",
		Selectors: scraper.Selectors{
			Container: "div.job",
			Title:     "h2",
		},
		Interval: time.Hour,
		Enabled:  true,
	}
	selectorsJSON, err := json.Marshal(site.Selectors)
	require.NoError(t, err)

	mock.ExpectQuery("INSERT INTO sites").
		WithArgs(pgxmock.AnyArg(), site.Name, site.URL, selectorsJSON, int64(3600), true, []byte(`[]`)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("22222222-2222-2222-2222-222222222222"))

	id, err := store.AddSite(context.Background(), site)
	require.NoError(t, err)
	require.Equal(t, "22222222-2222-2222-2222-222222222222", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSite_RejectsInvalid(t *testing.T) {
	t.Parallel()

	store, _ := newMockStore(t)
	_, err := store.AddSite(context.Background(), scraper.Site{Name: "no-url"})
	require.Error(t, err)
}

func TestListEnabledSites_ScansRows(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	selectors := scraper.Selectors{Container: "div.job", Title: "h2", URL: "a"}
	selectorsJSON, err := json.Marshal(selectors)
	require.NoError(t, err)
	scraped := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("SELECT (.+) FROM sites WHERE enabled").
		WillReturnRows(pgxmock.
			NewRows([]string{"id", "name", "url", "selectors", "interval_seconds", "enabled", "tags", "last_scraped_at"}).
			AddRow("id-1", "acme", "https://acme.example", selectorsJSON, int64(1800), true, []byte(`["golang"]`), &scraped))

	sites, err := store.ListEnabledSites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 1)
	require.Equal(t, "acme", sites[0].Name)
	require.Equal(t, selectors, sites[0].Selectors)
	require.Equal(t, 30*time.Minute, sites[0].Interval)
	require.Equal(t, []string{"golang"}, sites[0].Tags)
	require.NotNil(t, sites[0].LastScrapedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSite_NotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM sites WHERE id").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "url", "selectors", "interval_seconds", "enabled", "tags", "last_scraped_at"}))

	_, err := store.GetSite(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetSiteEnabled_NotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE sites SET enabled").
		WithArgs("missing", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.SetSiteEnabled(context.Background(), "missing", false)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun_InsertsRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	run := scraper.Run{
		ID:       "33333333-3333-3333-3333-333333333333",
		SiteID:   "11111111-1111-1111-1111-111111111111",
		Started:  now,
		Finished: now.Add(time.Minute),
		Status:   scraper.RunStatusPartial,
		Reason:   "2 listings dropped",
		Counters: scraper.RunCounters{Fetched: 1, Parsed: 10, New: 3, Duplicates: 7, Errors: 0},
	}

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(
			run.ID, run.SiteID, run.Started, run.Finished, "partial", run.Reason,
			1, 10, 3, 7, 0,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveRun(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStats_ScansAggregates(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	since := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("FROM runs WHERE started_at").
		WithArgs(since).
		WillReturnRows(pgxmock.
			NewRows([]string{"runs", "succeeded", "partial", "failed", "new_jobs", "duplicates"}).
			AddRow(5, 3, 1, 1, 12, 40))

	stats, err := store.RunStats(context.Background(), since)
	require.NoError(t, err)
	require.Equal(t, scraper.RunStats{Runs: 5, Succeeded: 3, Partial: 1, Failed: 1, NewJobs: 12, Duplicates: 40}, stats)
	require.NoError(t, mock.ExpectationsWereMet())
}
