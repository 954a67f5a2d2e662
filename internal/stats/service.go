// Package stats runs the scrape-and-store operations for the tracker.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"covid19-tracker/internal/chrono"
	"covid19-tracker/internal/extract"
	"covid19-tracker/internal/models"
	"covid19-tracker/internal/naming"
	"covid19-tracker/internal/store"
	"covid19-tracker/internal/telemetry"
)

var ErrUnknownKey = errors.New("unknown key")

// Loader is the outbound side of the service. crawler.HTTPClient satisfies it.
type Loader interface {
	LoadPage(ctx context.Context, rawURL string) (*goquery.Document, error)
	FetchJSON(ctx context.Context, rawURL string, out any) error
}

type Sources struct {
	StatsURL   string
	HistoryURL string
}

type Service struct {
	loader    Loader
	store     store.Store
	clock     chrono.Clock
	tel       telemetry.API
	sources   Sources
	threshold float64
}

func NewService(loader Loader, st store.Store, clock chrono.Clock, tel telemetry.API, sources Sources) *Service {
	return &Service{
		loader:    loader,
		store:     st,
		clock:     clock,
		tel:       tel,
		sources:   sources,
		threshold: naming.DefaultThreshold,
	}
}

// SetNearMissThreshold changes the similarity at which unmatched country
// names are reported.
func (s *Service) SetNearMissThreshold(t float64) *Service {
	s.threshold = t
	return s
}

func (s *Service) scoped(op string) (telemetry.API, string) {
	runID := uuid.NewString()
	return telemetry.NewScopedAPI(op, s.tel), runID
}

// FetchSummary loads the stats page, extracts the headline counters and
// stores them under store.KeySummary.
func (s *Service) FetchSummary(ctx context.Context) (models.Summary, error) {
	tel, runID := s.scoped("summary")
	tel.ReportDebug("start", "run", runID, "url", s.sources.StatsURL)

	doc, err := s.loader.LoadPage(ctx, s.sources.StatsURL)
	if err != nil {
		return models.Summary{}, fmt.Errorf("fetch summary: %w", err)
	}

	summary := extract.Summary(doc, s.clock, tel)
	if err := s.store.Set(ctx, store.KeySummary, summary); err != nil {
		return models.Summary{}, fmt.Errorf("fetch summary: %w", err)
	}
	tel.ReportDebug("stored", "run", runID, "cases", summary.Cases, "updated", summary.Updated)
	return summary, nil
}

// FetchCountries loads the stats page, merges the today and yesterday
// tables and stores the sorted list under store.KeyCountries. A malformed
// table is an error and leaves the stored list untouched.
func (s *Service) FetchCountries(ctx context.Context) ([]models.CountryRow, error) {
	tel, runID := s.scoped("countries")
	tel.ReportDebug("start", "run", runID, "url", s.sources.StatsURL)

	doc, err := s.loader.LoadPage(ctx, s.sources.StatsURL)
	if err != nil {
		return nil, fmt.Errorf("fetch countries: %w", err)
	}

	today, yesterday, err := extract.Tables(doc, tel)
	if err != nil {
		return nil, fmt.Errorf("fetch countries: %w", err)
	}
	s.reportNearMisses(tel, today, yesterday)

	rows := extract.Merge(today, yesterday)
	extract.SortByCases(rows)

	if err := s.store.Set(ctx, store.KeyCountries, rows); err != nil {
		return nil, fmt.Errorf("fetch countries: %w", err)
	}
	tel.ReportCount("rows", int64(len(rows)))
	tel.ReportDebug("stored", "run", runID, "today", len(today), "yesterday", len(yesterday))
	return rows, nil
}

// rows only merge on identical names, so flag spellings that nearly match
func (s *Service) reportNearMisses(tel telemetry.API, today, yesterday []models.CountryRow) {
	todayOnly, yesterdayOnly := extract.Unmatched(today, yesterday)
	for _, nm := range naming.NearMisses(todayOnly, yesterdayOnly, s.threshold) {
		tel.ReportWarning("near-miss", fmt.Sprintf("%q and %q were not merged (similarity %.2f)", nm.A, nm.B, nm.Score))
	}
}

// FetchHistory downloads the time-series feed, renames the keys that are
// spelled differently from the stats page and stores it under
// store.KeyHistory.
func (s *Service) FetchHistory(ctx context.Context) (models.History, error) {
	tel, runID := s.scoped("history")
	tel.ReportDebug("start", "run", runID, "url", s.sources.HistoryURL)

	var history models.History
	if err := s.loader.FetchJSON(ctx, s.sources.HistoryURL, &history); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	if history == nil {
		history = models.History{}
	}

	for _, a := range naming.Rename(history, naming.HistoryAliases) {
		tel.ReportDebug("renamed", "from", a.From, "to", a.To)
	}

	if err := s.store.Set(ctx, store.KeyHistory, history); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	tel.ReportCount("series", int64(len(history)))
	tel.ReportDebug("stored", "run", runID)
	return history, nil
}

// FetchAll runs the three operations in turn. A failure in one does not
// stop the others; the errors are joined.
func (s *Service) FetchAll(ctx context.Context) error {
	_, errSummary := s.FetchSummary(ctx)
	_, errCountries := s.FetchCountries(ctx)
	_, errHistory := s.FetchHistory(ctx)
	return errors.Join(errSummary, errCountries, errHistory)
}

// Dashboard reads every stored key back. Keys that were never written are
// left at their zero value.
func (s *Service) Dashboard(ctx context.Context) (models.Dashboard, error) {
	var (
		d       models.Dashboard
		summary models.Summary
	)

	ok, err := s.store.Get(ctx, store.KeySummary, &summary)
	if err != nil {
		return d, err
	}
	if ok {
		d.Summary = &summary
	}
	if _, err := s.store.Get(ctx, store.KeyCountries, &d.Countries); err != nil {
		return d, err
	}
	if _, err := s.store.Get(ctx, store.KeyNews, &d.News); err != nil {
		return d, err
	}
	if _, err := s.store.Get(ctx, store.KeyHistory, &d.History); err != nil {
		return d, err
	}
	return d, nil
}

var knownKeys = map[string]bool{
	store.KeySummary:   true,
	store.KeyCountries: true,
	store.KeyHistory:   true,
	store.KeyNews:      true,
}

// Raw returns the stored document for key as-is.
func (s *Service) Raw(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if !knownKeys[key] {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	var raw json.RawMessage
	ok, err := s.store.Get(ctx, key, &raw)
	return raw, ok, err
}

// UpdatedAt returns when key was last stored.
func (s *Service) UpdatedAt(ctx context.Context, key string) (time.Time, bool, error) {
	if !knownKeys[key] {
		return time.Time{}, false, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return s.store.UpdatedAt(ctx, key)
}

// Series returns the stored time series for one country.
func (s *Service) Series(ctx context.Context, country string) ([]models.HistorySample, bool, error) {
	var history models.History
	ok, err := s.store.Get(ctx, store.KeyHistory, &history)
	if err != nil || !ok {
		return nil, false, err
	}
	return history.Series(country)
}
