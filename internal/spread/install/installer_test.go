package install

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kolkov/spreadcall/internal/spread/guard"
	"github.com/kolkov/spreadcall/internal/spread/realm"
	"github.com/kolkov/spreadcall/internal/spread/shape"
	"github.com/kolkov/spreadcall/internal/spread/site"
	"github.com/kolkov/spreadcall/internal/spread/watchpoint"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	realm     *realm.Realm
	manager   *watchpoint.Manager
	installer *Installer
}

func newFixture() *fixture {
	r := realm.New()
	m := watchpoint.NewManager(r, nil)
	return &fixture{realm: r, manager: m, installer: NewInstaller(r, m, nil)}
}

func (f *fixture) guard(t *testing.T, s *site.CallSite, arr *realm.Object) *guard.Guard {
	t.Helper()
	g, err := guard.Synthesize(f.realm, shape.Classify(f.realm, arr), s)
	require.NoError(t, err)
	return g
}

func TestFastPath_ReadsStorage(t *testing.T) {
	r := realm.New()
	got, ok := FastPath(r.NewArray(1.0, 2.0))
	require.True(t, ok)
	assert.Equal(t, []realm.Value{1.0, 2.0}, got)

	holey := r.NewArray(1.0, 2.0)
	holey.DeleteElement(0)
	_, ok = FastPath(holey)
	assert.False(t, ok)
}

func TestInstall_RegistersBeforePublishing(t *testing.T) {
	f := newFixture()
	s := site.New("f")
	arr := f.realm.NewArray(1.0, 2.0)
	g := f.guard(t, s, arr)

	ok, err := f.installer.Install(s, g)
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, s.FastPathInstalled())
	assert.Same(t, g, s.Specialization().Guard)
	assert.True(t, f.manager.Registered(g))
	for _, slot := range g.Slots() {
		assert.Equal(t, 1, f.manager.Watchers(slot), slot.String())
	}
}

func TestInstall_IdempotentForEquivalentGuard(t *testing.T) {
	f := newFixture()
	s := site.New("f")
	arr := f.realm.NewArray(1.0)
	g := f.guard(t, s, arr)
	_, err := f.installer.Install(s, g)
	require.NoError(t, err)

	again := f.guard(t, s, arr)
	ok, err := f.installer.Install(s, again)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Same(t, g, s.Specialization().Guard)
	assert.False(t, f.manager.Registered(again))
	assert.Equal(t, Stats{Installed: 1, Unchanged: 1}, f.installer.Stats())
}

func TestInstall_RejectsPoisonedAndChanged(t *testing.T) {
	f := newFixture()
	s := site.New("f")
	g := f.guard(t, s, f.realm.NewArray(1.0))

	f.realm.ArrayIteratorPrototype().Set(realm.KeyNext, f.realm.NewFunction("next2", nil))

	_, err := f.installer.Install(s, g)
	assert.ErrorIs(t, err, ErrPoisoned)
	assert.False(t, s.FastPathInstalled())

	f2 := newFixture()
	arr := f2.realm.NewArray(1.0)
	g2 := f2.guard(t, s, arr)
	arr.Set(realm.SymbolIterator, f2.realm.NewFunction("mine", nil))
	_, err = f2.installer.Install(s, g2)
	assert.ErrorIs(t, err, ErrIdentityChanged)
}

func TestInstall_ReplacesNonEquivalentGuard(t *testing.T) {
	f := newFixture()
	s := site.New("f")
	first := f.realm.NewArray(1.0)
	old := f.guard(t, s, first)
	_, err := f.installer.Install(s, old)
	require.NoError(t, err)

	second := f.realm.NewArray(2.0, 3.0)
	g := f.guard(t, s, second)
	require.False(t, old.Equivalent(g))

	ok, err := f.installer.Install(s, g)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Same(t, g, s.Specialization().Guard)
	assert.True(t, old.Retired())
	assert.False(t, f.manager.Registered(old))
	assert.Zero(t, f.manager.Watchers(realm.SlotRef{Holder: first, Key: realm.SymbolIterator}))
	assert.Equal(t, 1, f.manager.Watchers(realm.SlotRef{Holder: second, Key: realm.SymbolIterator}))
	assert.Equal(t, 1, f.manager.Watchers(f.realm.IteratorSlot()))
	assert.Equal(t, Stats{Installed: 2, Replaced: 1}, f.installer.Stats())

	// Replacement is not a demotion.
	assert.False(t, s.Demoted())
	assert.Zero(t, s.Demotions())

	// The displaced instance no longer guards anything.
	first.Set(realm.SymbolIterator, f.realm.NewFunction("mine", nil))
	assert.True(t, s.FastPathInstalled())
	second.Set(realm.SymbolIterator, f.realm.NewFunction("mine", nil))
	assert.False(t, s.FastPathInstalled())
}

func TestInstallAt_RejectsStaleGeneration(t *testing.T) {
	f := newFixture()
	s := site.New("f")
	s.ExtendStreak()
	gen := s.Generation()
	g := f.guard(t, s, f.realm.NewArray(1.0))

	s.ResetStreak()

	_, err := f.installer.InstallAt(s, g, gen)
	assert.ErrorIs(t, err, site.ErrStale)
	assert.False(t, f.manager.Registered(g), "registration rolled back")
}

func TestCompiler_InstallsInBackground(t *testing.T) {
	f := newFixture()
	var mu sync.Mutex
	var done []bool
	c := NewCompiler(context.Background(), f.installer, CompilerOptions{
		Workers: 2,
		OnDone: func(_ Request, installed bool, _ error) {
			mu.Lock()
			done = append(done, installed)
			mu.Unlock()
		},
	}, nil)

	sites := []*site.CallSite{site.New("a"), site.New("b"), site.New("c")}
	for _, s := range sites {
		require.True(t, s.TryBeginCompile())
		require.NoError(t, c.Enqueue(Request{Site: s, Guard: f.guard(t, s, f.realm.NewArray(1.0)), Generation: s.Generation()}))
	}
	require.NoError(t, c.Close())

	for _, s := range sites {
		assert.True(t, s.FastPathInstalled(), s.ID)
		assert.False(t, s.CompilePending(), s.ID)
	}
	assert.Equal(t, []bool{true, true, true}, done)
	assert.Equal(t, uint64(3), c.Processed())
}

func TestCompiler_EnqueueAfterClose(t *testing.T) {
	f := newFixture()
	c := NewCompiler(context.Background(), f.installer, CompilerOptions{}, nil)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	s := site.New("a")
	require.True(t, s.TryBeginCompile())
	err := c.Enqueue(Request{Site: s, Guard: f.guard(t, s, f.realm.NewArray(1.0))})
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, s.CompilePending())
}

func TestCompiler_StopsOnContextCancel(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCompiler(ctx, f.installer, CompilerOptions{Workers: 3}, nil)
	cancel()
	assert.NoError(t, c.Close())
}
