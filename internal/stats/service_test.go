package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"covid19-tracker/internal/chrono"
	"covid19-tracker/internal/crawler"
	"covid19-tracker/internal/models"
	"covid19-tracker/internal/store"
	"covid19-tracker/internal/telemetry"
)

const statsPage = `<html><body>
<div class="content-inner">
  <div class="maincounter-number"><span>1,000</span></div>
  <div class="maincounter-number"><span>50</span></div>
  <div class="maincounter-number"><span>400</span></div>
  <div>Last updated: March-15, 2020, 14:30</div>
</div>
<table id="main_table_countries_today">
  <thead><tr><th>#</th><th>Country</th><th>TotalCases</th><th>NewCases</th><th>TotalDeaths</th>
  <th>NewDeaths</th><th>TotalRecovered</th><th>ActiveCases</th><th>Critical</th></tr></thead>
  <tbody>
    <tr><td>1</td><td>Germany</td><td>90</td><td>+5</td><td>1</td><td></td><td>10</td><td>79</td><td>2</td></tr>
    <tr><td>2</td><td>France</td><td>100</td><td>+12</td><td>3</td><td>+1</td><td>20</td><td>77</td><td></td></tr>
    <tr><td>3</td><td>Czechia</td><td>7</td><td>+1</td><td>0</td><td></td><td>0</td><td>7</td><td></td></tr>
    <tr class="total_row"><td></td><td>World</td><td>197</td><td>+18</td><td>4</td><td>+1</td><td>30</td><td>163</td><td>2</td></tr>
  </tbody>
</table>
<table id="main_table_countries_yesterday">
  <thead><tr><th>#</th><th>Country</th><th>TotalCases</th><th>NewCases</th><th>TotalDeaths</th>
  <th>NewDeaths</th><th>TotalRecovered</th><th>ActiveCases</th><th>Critical</th></tr></thead>
  <tbody>
    <tr><td>1</td><td>France</td><td>88</td><td>+90</td><td>2</td><td>+2</td><td>15</td><td>71</td><td></td></tr>
    <tr><td>2</td><td>Czech Republic</td><td>6</td><td>+3</td><td>0</td><td></td><td>0</td><td>6</td><td></td></tr>
  </tbody>
</table>
</body></html>`

const historyFeed = `{
  "US": [{"date": "2020-1-22", "confirmed": 1, "deaths": 0, "recovered": 0}],
  "Korea, South": [{"date": "2020-1-22", "confirmed": 1, "deaths": 0, "recovered": 0}],
  "Taiwan*": [{"date": "2020-1-22", "confirmed": 1, "deaths": 0, "recovered": 0}],
  "France": [{"date": "2020-1-22", "confirmed": 0, "deaths": 0, "recovered": 0}]
}`

type fixture struct {
	svc   *Service
	store *store.Memory
	rec   *telemetry.Recorder
}

func newFixture(t *testing.T, handler http.HandlerFunc) fixture {
	t.Helper()
	return newCappedFixture(t, handler, 1<<20)
}

func newCappedFixture(t *testing.T, handler http.HandlerFunc, sizeCap int64) fixture {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	rec := &telemetry.Recorder{}
	mem := store.NewMemory()
	client := crawler.NewHTTPClient(5*time.Second, 2*time.Second, sizeCap, rec)
	svc := NewService(client, mem, chrono.FixedClock{T: time.Unix(0, 0).UTC()}, rec, Sources{
		StatsURL:   ts.URL + "/stats",
		HistoryURL: ts.URL + "/history",
	})
	return fixture{svc: svc, store: mem, rec: rec}
}

func upstream(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/stats":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(statsPage))
	case "/history":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(historyFeed))
	default:
		http.NotFound(w, r)
	}
}

func TestFetchSummaryStores(t *testing.T) {
	f := newFixture(t, upstream)
	ctx := context.Background()

	got, err := f.svc.FetchSummary(ctx)
	require.NoError(t, err)
	require.Equal(t, models.Summary{Cases: 1000, Deaths: 50, Recovered: 400, Updated: 1584282600000}, got)

	var stored models.Summary
	ok, err := f.store.Get(ctx, store.KeySummary, &stored)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, got, stored)
}

func TestFetchCountriesMergesAndSorts(t *testing.T) {
	f := newFixture(t, upstream)
	ctx := context.Background()

	rows, err := f.svc.FetchCountries(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, "France", rows[0].Country)
	require.Equal(t, "Germany", rows[1].Country)
	require.Equal(t, "Czechia", rows[2].Country)
	require.Equal(t, "Czech Republic", rows[3].Country)

	v, ok := rows[0].Count(models.FieldYesterdayCases)
	require.True(t, ok)
	require.Equal(t, int64(90), v)

	raw, ok, err := f.svc.Raw(ctx, store.KeyCountries)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, string(raw), `"country":"France","cases":100,"todayCases":12`)
	require.Contains(t, string(raw), `"critical":null`)
}

func TestFetchCountriesReportsNearMisses(t *testing.T) {
	f := newFixture(t, upstream)
	f.svc.SetNearMissThreshold(0.5)

	_, err := f.svc.FetchCountries(context.Background())
	require.NoError(t, err)

	warnings := f.rec.Reports(telemetry.LevelWarning)
	require.NotEmpty(t, warnings)
	require.Contains(t, warnings[0].String(), `"Czechia" and "Czech Republic"`)
}

func TestFetchHistoryRenamesKeys(t *testing.T) {
	f := newFixture(t, upstream)
	ctx := context.Background()

	history, err := f.svc.FetchHistory(ctx)
	require.NoError(t, err)
	for _, key := range []string{"USA", "S. Korea", "Taiwan", "France"} {
		require.Contains(t, history, key)
	}
	for _, key := range []string{"US", "Korea, South", "Taiwan*"} {
		require.NotContains(t, history, key)
	}

	series, ok, err := f.svc.Series(ctx, "USA")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, series, 1)
	require.Equal(t, "2020-1-22", series[0].Date)
	require.Equal(t, int64(1), *series[0].Confirmed)
}

func TestFailuresDoNotPersist(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stats":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("<html><body>maintenance</body></html>"))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})
	ctx := context.Background()

	_, err := f.svc.FetchCountries(ctx)
	require.Error(t, err)

	_, err = f.svc.FetchHistory(ctx)
	require.ErrorIs(t, err, crawler.ErrStatus)

	var rows []models.CountryRow
	ok, err := f.store.Get(ctx, store.KeyCountries, &rows)
	require.NoError(t, err)
	require.False(t, ok)

	var history models.History
	ok, err = f.store.Get(ctx, store.KeyHistory, &history)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOversizedPageIsNotPersisted(t *testing.T) {
	// a cap that would cut the page right before the last yesterday row
	cut := strings.Index(statsPage, "<tr><td>2</td><td>Czech Republic")
	require.Positive(t, cut)
	f := newCappedFixture(t, upstream, int64(cut))
	ctx := context.Background()

	_, err := f.svc.FetchCountries(ctx)
	require.ErrorIs(t, err, crawler.ErrTooLarge)

	var rows []models.CountryRow
	ok, err := f.store.Get(ctx, store.KeyCountries, &rows)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFetchAllJoinsErrors(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/history" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		upstream(w, r)
	})
	ctx := context.Background()

	err := f.svc.FetchAll(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, crawler.ErrStatus))

	d, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	require.NotNil(t, d.Summary)
	require.Len(t, d.Countries, 4)
	require.Nil(t, d.History)
}

func TestDashboardPassesNewsThrough(t *testing.T) {
	f := newFixture(t, upstream)
	ctx := context.Background()

	require.NoError(t, f.store.Set(ctx, store.KeyNews, json.RawMessage(`[{"title":"x"}]`)))

	d, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Nil(t, d.Summary)
	require.JSONEq(t, `[{"title":"x"}]`, string(d.News))
}

func TestRawRejectsUnknownKey(t *testing.T) {
	f := newFixture(t, upstream)
	_, _, err := f.svc.Raw(context.Background(), "secrets")
	require.ErrorIs(t, err, ErrUnknownKey)
}
