package telemetry

import (
	"fmt"
	"strings"
	"sync"
)

type Level int

const (
	LevelDebug Level = iota
	LevelWarning
	LevelBroken
	LevelCount
)

// Report is one call captured by a Recorder.
type Report struct {
	Level  Level
	ID     string
	Params []any
}

// String renders the id and params on one line.
func (r Report) String() string {
	parts := make([]string, 0, len(r.Params)+1)
	parts = append(parts, r.ID)
	for _, p := range r.Params {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, " ")
}

// Recorder is an API that keeps every report in memory.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
}

func (r *Recorder) add(rep Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.add(Report{Level: LevelBroken, ID: id, Params: params})
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.add(Report{Level: LevelWarning, ID: id, Params: params})
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.add(Report{Level: LevelDebug, ID: msg, Params: params})
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.add(Report{Level: LevelCount, ID: id, Params: []any{count}})
}

// Reports returns the captured reports at the given level.
func (r *Recorder) Reports(level Level) []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Report
	for _, rep := range r.reports {
		if rep.Level == level {
			out = append(out, rep)
		}
	}
	return out
}
