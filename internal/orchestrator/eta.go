package orchestrator

import "time"

// minFilesForETA is the number of files a phase must complete before
// its ETA is considered reliable (spec §4.13: "ignore ETA for the
// first 5 files (too little data)").
const minFilesForETA = 5

// phaseETA tracks one phase's own entry instant and completion count,
// never the session's started_at (spec §4.13: "Never use
// session.started_at for per-phase ETA").
type phaseETA struct {
	enteredAt time.Time
	completed int
}

// newPhaseETA marks a phase's entry instant.
func newPhaseETA(now time.Time) *phaseETA {
	return &phaseETA{enteredAt: now}
}

// RecordCompletion increments this phase's completed-file count.
func (p *phaseETA) RecordCompletion() {
	p.completed++
}

// Estimate returns the remaining-time estimate for this phase given
// filesRemaining, or ok=false if fewer than minFilesForETA files have
// completed yet (spec §4.13, Scenario E).
func (p *phaseETA) Estimate(now time.Time, filesRemaining int) (eta time.Duration, ok bool) {
	if p.completed < minFilesForETA {
		return 0, false
	}
	elapsed := now.Sub(p.enteredAt)
	perFile := elapsed / time.Duration(p.completed)
	return perFile * time.Duration(filesRemaining), true
}
