package telemetry

import (
	"fmt"
)

// API is the diagnostics sink used by every component. Tests swap in a
// Recorder to assert on what was reported.
type API interface {
	// ReportBroken reports a component that failed in a way that should be
	// addressed. The id names the component, not the specific failure,
	// e.g. "summary.last-updated". Details go in params.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something that did not fail but may be worth a look.
	ReportWarning(id string, params ...any)

	// ReportDebug reports debug information that is dropped in production.
	ReportDebug(msg string, params ...any)

	// ReportCount reports a point-in-time count for an event.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace, like a sub-logger.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(fmt.Sprintf("%s: %s", s.namespace, msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(fmt.Sprintf("%s: %s", s.namespace, id), count)
}
