// Package progress turns orchestration milestones into a percentage and a
// localized, human-readable status label.
//
// Percentages follow a fixed schedule: 0 while the minutes document is
// analysed, 10 once participants are known, then 10 + (i/N)*90 before video
// i of N, and 100 on completion. A [Tracker] keeps the percentage
// non-decreasing within one run.
package progress

import (
	"log/slog"
	"sync"
)

// Stage is a machine-readable milestone identifier.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageAnalyzing    Stage = "analyzing"
	StageTranscribing Stage = "transcribing"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
	StageAnonymizing  Stage = "anonymizing"
	StageAnonymized   Stage = "anonymized"
	StageCorrecting   Stage = "correcting"
	StageCorrected    Stage = "corrected"
)

// ParticipantsPercent is reported once the participants summary is known.
const ParticipantsPercent = 10

// Progress is a point-in-time status report.
type Progress struct {
	Percent float64 `json:"percent"`
	Label   string  `json:"label"`
	Stage   Stage   `json:"stage"`
}

// VideoPercent returns the progress reported before transcribing video i
// (zero-based) of n.
func VideoPercent(i, n int) float64 {
	if n <= 0 {
		return 100
	}
	return ParticipantsPercent + float64(i)*(100-ParticipantsPercent)/float64(n)
}

// Tracker enforces a non-decreasing percentage across the reports of one run.
// Create a new Tracker for every run. It is safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	last float64
}

// NewTracker returns a Tracker starting at 0%.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Next records p and returns it, raising Percent to the last reported value
// if p would move backwards.
func (t *Tracker) Next(p Progress) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.Percent < t.last {
		slog.Debug("progress: clamping regression", "from", t.last, "to", p.Percent, "stage", p.Stage)
		p.Percent = t.last
	}
	if p.Percent > 100 {
		p.Percent = 100
	}
	t.last = p.Percent
	return p
}

// Fail returns a failure report that keeps the last reported percentage.
func (t *Tracker) Fail(label string) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Progress{Percent: t.last, Label: label, Stage: StageFailed}
}
