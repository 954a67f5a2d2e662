package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"covid19-tracker/internal/chrono"
	"covid19-tracker/internal/models"
	"covid19-tracker/internal/parser"
	"covid19-tracker/internal/telemetry"
)

const (
	counterSelector     = ".maincounter-number"
	lastUpdatedSelector = `.content-inner div:contains("Last updated")`
	lastUpdatedLabel    = "Last updated:"
)

var lastUpdatedLayouts = []string{
	"January-2, 2006, 15:04",
	"January 2, 2006, 15:04",
}

// Summary reads the headline counters in document order (cases, deaths,
// recovered) and the "Last updated" timestamp. Missing or unreadable
// counters are 0.
func Summary(doc *goquery.Document, clock chrono.Clock, tel telemetry.API) models.Summary {
	var summary models.Summary
	targets := []*int64{&summary.Cases, &summary.Deaths, &summary.Recovered}

	doc.Find(counterSelector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= len(targets) {
			return false
		}
		*targets[i] = parser.Counter(s.Text())
		return true
	})

	summary.Updated = LastUpdated(doc, clock, tel)
	return summary
}

// LastUpdated returns the page's "Last updated" time in epoch milliseconds.
// If the text cannot be parsed, or reading it panics, the failure is
// reported and the clock's current time is used instead.
func LastUpdated(doc *goquery.Document, clock chrono.Clock, tel telemetry.API) (updated int64) {
	defer func() {
		if r := recover(); r != nil {
			tel.ReportBroken("summary.last-updated", fmt.Errorf("recovered: %v", r))
			updated = clock.Now().UnixMilli()
		}
	}()

	// :contains also matches wrappers, so keep the innermost element that
	// starts with the label
	label := doc.Find(lastUpdatedSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.HasPrefix(strings.TrimSpace(s.Text()), lastUpdatedLabel)
	}).Last()
	text := stripLabel(label.Text())
	t, err := ParseLastUpdated(text)
	if err != nil {
		tel.ReportBroken("summary.last-updated", fmt.Sprintf("failed to parse last updated: %s", text))
		return clock.Now().UnixMilli()
	}
	return t.UnixMilli()
}

func stripLabel(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, lastUpdatedLabel)
	return strings.TrimSpace(text)
}

// ParseLastUpdated parses "March-15, 2020, 14:30" as UTC. A space may stand
// in for the dash and a trailing GMT or UTC is ignored.
func ParseLastUpdated(text string) (time.Time, error) {
	s := strings.TrimSpace(text)
	for _, zone := range []string{"GMT", "UTC"} {
		s = strings.TrimSpace(strings.TrimSuffix(s, zone))
	}

	var firstErr error
	for _, layout := range lastUpdatedLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
