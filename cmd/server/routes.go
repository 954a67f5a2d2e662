package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"covid19-tracker/internal/stats"
	"covid19-tracker/pkg/logger"
)

func newRouter(l *logger.Logger, svc *stats.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logRequest(l))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// GET /api/data  the whole dashboard document
	r.Get("/api/data", func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.Dashboard(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	})

	r.Get("/api/history/{country}", func(w http.ResponseWriter, r *http.Request) {
		country, err := url.PathUnescape(chi.URLParam(r, "country"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		series, ok, err := svc.Series(r.Context(), country)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no history for " + country})
			return
		}
		writeJSON(w, http.StatusOK, series)
	})

	r.Get("/api/{key}", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		raw, ok, err := svc.Raw(r.Context(), key)
		switch {
		case errors.Is(err, stats.ErrUnknownKey):
			writeError(w, http.StatusNotFound, err)
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, err)
			return
		case !ok:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": key + " not fetched yet"})
			return
		}
		if at, ok, err := svc.UpdatedAt(r.Context(), key); err == nil && ok {
			w.Header().Set("Last-Modified", at.UTC().Format(http.TimeFormat))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func logRequest(l *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			l.Infof("%s %s %s", r.Method, r.URL.Path, time.Since(start))
		})
	}
}
