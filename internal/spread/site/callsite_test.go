package site

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/spreadcall/internal/spread/guard"
	"github.com/kolkov/spreadcall/internal/spread/realm"
	"github.com/kolkov/spreadcall/internal/spread/shape"
)

func newGuard(t *testing.T, r *realm.Realm, s *CallSite) *guard.Guard {
	t.Helper()
	g, err := guard.Synthesize(r, shape.Classify(r, r.NewArray(1.0)), s)
	require.NoError(t, err)
	return g
}

func noFast(*realm.Object) ([]realm.Value, bool) { return nil, false }

func TestCallSite_InitialState(t *testing.T) {
	s := New("f:1")
	assert.Equal(t, Unqualified, s.State(3, true))
	assert.False(t, s.FastPathInstalled())
	assert.False(t, s.Demoted())
	assert.Nil(t, s.Specialization())
}

func TestCallSite_StateMachine(t *testing.T) {
	r := realm.New()
	s := New("f:1")

	for i := 0; i < 3; i++ {
		s.ExtendStreak()
	}
	assert.Equal(t, Qualified, s.State(3, true))

	g := newGuard(t, r, s)
	_, err := s.Publish(&Specialization{Guard: g, Path: noFast, Generation: s.Generation()})
	require.NoError(t, err)
	assert.Equal(t, Specialized, s.State(3, true))
	assert.Equal(t, uint64(1), s.Installs())

	s.Invalidate(g, "test")
	assert.Equal(t, Demoted, s.State(3, true))
	assert.True(t, s.Demoted())
	assert.Zero(t, s.QualifiedStreak())
	assert.Equal(t, uint64(1), s.Demotions())

	for i := 0; i < 3; i++ {
		s.ExtendStreak()
	}
	assert.Equal(t, Qualified, s.State(3, true))

	g2 := newGuard(t, r, s)
	_, err = s.Publish(&Specialization{Guard: g2, Path: noFast, Generation: s.Generation()})
	require.NoError(t, err)
	assert.False(t, s.Demoted(), "re-install clears demotion")
}

func TestCallSite_StateWithPoisonedProtocol(t *testing.T) {
	s := New("f:2")
	for i := 0; i < 5; i++ {
		s.ExtendStreak()
	}
	assert.Equal(t, Qualified, s.State(3, true))
	assert.Equal(t, Unqualified, s.State(3, false))

	r := realm.New()
	g := newGuard(t, r, s)
	_, err := s.Publish(&Specialization{Guard: g, Path: noFast, Generation: s.Generation()})
	require.NoError(t, err)
	s.Invalidate(g, "poisoned")
	for i := 0; i < 5; i++ {
		s.ExtendStreak()
	}
	assert.Equal(t, Demoted, s.State(3, false))
}

func TestCallSite_PublishStale(t *testing.T) {
	r := realm.New()
	s := New("f:1")
	s.ExtendStreak()
	gen := s.Generation()
	s.ResetStreak()

	_, err := s.Publish(&Specialization{Guard: newGuard(t, r, s), Path: noFast, Generation: gen})
	require.ErrorIs(t, err, ErrStale)
	assert.False(t, s.FastPathInstalled())
}

func TestCallSite_PublishRetiredPanics(t *testing.T) {
	r := realm.New()
	s := New("f:1")
	g := newGuard(t, r, s)
	g.Retire()

	assert.PanicsWithError(t, "site: fast path published without a live guard: publishing "+g.String()+" at f:1", func() {
		_, _ = s.Publish(&Specialization{Guard: g, Path: noFast, Generation: s.Generation()})
	})
}

func TestCallSite_InvalidateIgnoresForeignGuard(t *testing.T) {
	r := realm.New()
	s := New("f:1")
	g := newGuard(t, r, s)
	_, err := s.Publish(&Specialization{Guard: g, Path: noFast, Generation: s.Generation()})
	require.NoError(t, err)

	s.Invalidate(newGuard(t, r, s), "other")
	assert.True(t, s.FastPathInstalled())
}

func TestCallSite_MustBeLive(t *testing.T) {
	r := realm.New()
	s := New("f:1")
	g := newGuard(t, r, s)
	spec := &Specialization{Guard: g, Path: noFast, Generation: s.Generation()}
	_, err := s.Publish(spec)
	require.NoError(t, err)

	assert.NotPanics(t, func() { s.MustBeLive(spec) })

	// Correct order: withdraw, then retire. In-flight holders are fine.
	s.Invalidate(g, "test")
	g.Retire()
	assert.NotPanics(t, func() { s.MustBeLive(spec) })
}

func TestCallSite_MustBeLive_DetectsBug(t *testing.T) {
	r := realm.New()
	s := New("f:1")
	g := newGuard(t, r, s)
	spec := &Specialization{Guard: g, Path: noFast, Generation: s.Generation()}
	_, err := s.Publish(spec)
	require.NoError(t, err)

	g.Retire() // retired without withdrawal
	assert.Panics(t, func() { s.MustBeLive(spec) })
}

func TestTable_GetOrCreate(t *testing.T) {
	tbl := NewTable()
	a := tbl.GetOrCreate("b")
	assert.Same(t, a, tbl.GetOrCreate("b"))
	assert.Nil(t, tbl.Get("missing"))
	tbl.GetOrCreate("a")

	all := tbl.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
}
