package search

import (
	"fmt"

	"github.com/kailas-cloud/kbroute/internal/domain/search/mode"
	"github.com/kailas-cloud/kbroute/internal/domain/search/profile"
	"github.com/kailas-cloud/kbroute/internal/domain/search/request"
)

type state int

const (
	stateStart state = iota
	stateEscalate
	stateDone
)

// Plan returns the profiles a search tries, in order. The first entry is the profile of
// cfg.Mode(). With adaptive recall, it is followed by every mode of mode.EscalationOrder
// strictly broader than the start, each loosened unless the start was already exhaustive.
func Plan(cfg request.Config) ([]profile.Profile, error) {
	start, err := profile.For(cfg.Mode())
	if err != nil {
		return nil, fmt.Errorf("start profile: %w", err)
	}
	plan := []profile.Profile{start}
	if !cfg.AdaptiveRecall() {
		return plan, nil
	}
	for _, m := range mode.Escalations(cfg.Mode()) {
		p := profile.MustFor(m)
		if cfg.Mode() != mode.Exhaustive {
			p = p.Loosen()
		}
		plan = append(plan, p)
	}
	return plan, nil
}

// escalation walks a plan: start, then escalate while attempts come back empty.
type escalation struct {
	plan  []profile.Profile
	next  int
	state state
}

func newEscalation(plan []profile.Profile) *escalation {
	return &escalation{plan: plan}
}

// attempt returns the next profile to try, or false once the plan is exhausted.
func (e *escalation) attempt() (profile.Profile, bool) {
	if e.state == stateDone || e.next >= len(e.plan) {
		e.state = stateDone
		return profile.Profile{}, false
	}
	p := e.plan[e.next]
	e.next++
	return p, true
}

// record moves the machine after an attempt returned n hits.
func (e *escalation) record(n int) {
	switch {
	case n > 0:
		e.state = stateDone
	case e.next >= len(e.plan):
		e.state = stateDone
	default:
		e.state = stateEscalate
	}
}

// escalated reports whether at least one escalation attempt was issued.
func (e *escalation) escalated() bool { return e.next > 1 }
