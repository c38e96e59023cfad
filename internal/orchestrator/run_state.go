package orchestrator

import (
	"fmt"
	"sync"
	"time"
)

// RunState is the single aggregate for one crawl run. It is owned exclusively
// by the orchestrator; everyone else reads it through Snapshot.
type RunState struct {
	mu              sync.Mutex
	startedAt       time.Time
	sourcesTotal    int
	sourcesDone     int
	recordsFound    int
	recordsEnriched int
	errors          []string
}

type RunSnapshot struct {
	StartedAt       time.Time
	SourcesTotal    int
	SourcesDone     int
	RecordsFound    int
	RecordsEnriched int
	Errors          []string
}

func newRunState(sourcesTotal int) *RunState {
	return &RunState{startedAt: time.Now(), sourcesTotal: sourcesTotal}
}

func (s *RunState) sourceDone(records, enriched int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourcesDone++
	s.recordsFound += records
	s.recordsEnriched += enriched
}

func (s *RunState) recordError(sourceName string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, fmt.Sprintf("%s: %s", sourceName, err.Error()))
}

// Snapshot returns a consistent copy, safe to read while pipelines run.
func (s *RunState) Snapshot() *RunSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := make([]string, len(s.errors))
	copy(errs, s.errors)

	return &RunSnapshot{
		StartedAt:       s.startedAt,
		SourcesTotal:    s.sourcesTotal,
		SourcesDone:     s.sourcesDone,
		RecordsFound:    s.recordsFound,
		RecordsEnriched: s.recordsEnriched,
		Errors:          errs,
	}
}
