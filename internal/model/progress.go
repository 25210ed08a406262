package model

import "fmt"

// Phase is a named state of one citation-mode run
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseStripping   Phase = "stripping"
	PhaseAnalyzing   Phase = "analyzing"
	PhaseResearching Phase = "researching"
	PhaseComplete    Phase = "complete"
	PhaseError       Phase = "error"
)

// phaseOrder gives the monotonic ordering of the happy path. Error is
// reachable from any non-terminal phase; complete and error are terminal.
var phaseOrder = map[Phase]int{
	PhaseIdle:        0,
	PhaseStripping:   1,
	PhaseAnalyzing:   2,
	PhaseResearching: 3,
	PhaseComplete:    4,
}

// CanTransition reports whether a phase change is legal: strictly
// forward along the happy path, or into error from any working phase.
func (p Phase) CanTransition(to Phase) bool {
	if p == PhaseComplete || p == PhaseError {
		return false
	}
	if to == PhaseError {
		return true
	}
	from, ok := phaseOrder[p]
	next, ok2 := phaseOrder[to]
	if !ok || !ok2 {
		return false
	}
	return next > from
}

// Progress is a snapshot of a citation-mode run's advancement
type Progress struct {
	Phase   Phase  `json:"phase"`
	Step    int    `json:"step"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// Transition returns the progress value after a phase change, or an
// error when the change is illegal. Pure: the receiver is not mutated.
func (p Progress) Transition(to Phase, step, total int, message string) (Progress, error) {
	if to != p.Phase && !p.Phase.CanTransition(to) {
		return p, fmt.Errorf("illegal progress transition: %s -> %s", p.Phase, to)
	}
	return Progress{Phase: to, Step: step, Total: total, Message: message}, nil
}

// Advance updates step and message within the current phase
func (p Progress) Advance(step int, message string) Progress {
	return Progress{Phase: p.Phase, Step: step, Total: p.Total, Message: message}
}
