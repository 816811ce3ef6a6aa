// Package feedback records per call-site shape feedback.
//
// The Recorder is the first thing every unspecialized execution consults. It
// counts the execution, classifies the argument and maintains the
// consecutive-qualification streak that decides when a call site is worth
// specializing.
//
// Streak policy: a hard reset to zero on any disqualifying observation. No
// time-based decay; a call site that alternates between qualifying and
// non-qualifying arguments never specializes.
package feedback

import (
	"github.com/kolkov/spreadcall/internal/spread/realm"
	"github.com/kolkov/spreadcall/internal/spread/shape"
	"github.com/kolkov/spreadcall/internal/spread/site"
)

// DefaultThreshold is the streak length after which a call site becomes
// eligible for specialization.
const DefaultThreshold = 40

// Recorder classifies arguments and maintains call-site streaks.
type Recorder struct {
	realm     *realm.Realm
	threshold uint32
}

// NewRecorder creates a recorder. A zero threshold selects DefaultThreshold.
func NewRecorder(r *realm.Realm, threshold uint32) *Recorder {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Recorder{realm: r, threshold: threshold}
}

// Threshold returns the qualification threshold.
func (r *Recorder) Threshold() uint32 { return r.threshold }

// Observe counts one execution of s with argument v, classifies v and
// updates the streak.
func (r *Recorder) Observe(s *site.CallSite, v realm.Value) shape.Observation {
	s.RecordExecution()
	obs := shape.Classify(r.realm, v)
	if obs.Qualifies(r.realm) {
		s.ExtendStreak()
	} else {
		s.ResetStreak()
	}
	return obs
}

// State returns the state-machine position of s under this recorder's
// threshold and the realm's protocol registry.
func (r *Recorder) State(s *site.CallSite) site.State {
	return s.State(r.threshold, r.realm.Registry().IsDefaultProtocolIntact())
}

// Eligible reports whether s should be specialized now: the streak reached
// the threshold, the default protocol is intact, and no fast path is
// installed or being compiled.
func (r *Recorder) Eligible(s *site.CallSite) bool {
	return s.QualifiedStreak() >= r.threshold &&
		r.realm.Registry().IsDefaultProtocolIntact() &&
		!s.FastPathInstalled() &&
		!s.CompilePending()
}
