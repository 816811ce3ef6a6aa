package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/spreadcall/internal/spread/engine"
	"github.com/kolkov/spreadcall/internal/spread/realm"
)

func sum(r *realm.Realm) *realm.Object {
	return r.NewFunction("sum", func(_ realm.Value, args []realm.Value) (realm.Value, error) {
		total := 0.0
		for _, a := range args {
			if f, ok := a.(float64); ok {
				total += f
			}
		}
		return total, nil
	})
}

func TestDefaultEngineSpecializes(t *testing.T) {
	require.NoError(t, Configure(engine.Options{Threshold: 2}))
	t.Cleanup(func() { _ = Configure(engine.Options{}) })

	r := Realm()
	fn := sum(r)
	for i := 0; i < 5; i++ {
		res, err := Execute("sum-site", r.NewArray(1.0, 2.0, 3.0), fn)
		require.NoError(t, err)
		assert.Equal(t, 6.0, res.Value)
		if i >= 2 {
			assert.Equal(t, engine.PathFast, res.Path, "call %d", i)
		}
	}
	st := Stats()
	assert.Equal(t, uint64(5), st.Executions)
	assert.Equal(t, uint64(3), st.FastCalls)
	assert.Equal(t, 1, st.Sites)
}

func TestDisableForcesGeneralPath(t *testing.T) {
	require.NoError(t, Configure(engine.Options{Threshold: 1}))
	t.Cleanup(func() {
		Enable()
		_ = Configure(engine.Options{})
	})

	Disable()
	assert.False(t, Enabled())

	r := Realm()
	fn := sum(r)
	for i := 0; i < 3; i++ {
		res, err := Execute("off", r.NewArray(4.0, 5.0), fn)
		require.NoError(t, err)
		assert.Equal(t, 9.0, res.Value)
		assert.Equal(t, engine.PathGeneral, res.Path)
	}
	assert.Zero(t, Stats().Executions, "disabled calls bypass the engine")
}

func TestConfigureReplacesRealm(t *testing.T) {
	before := Realm()
	require.NoError(t, Configure(engine.Options{}))
	assert.NotSame(t, before, Realm())
	assert.Zero(t, Stats().Sites)
}

func TestFiniWithBackground(t *testing.T) {
	require.NoError(t, Configure(engine.Options{Threshold: 1, Background: true, Workers: 2}))
	r := Realm()
	_, err := Execute("bg", r.NewArray(1.0), sum(r))
	require.NoError(t, err)
	require.NoError(t, Fini())
	assert.True(t, Engine().Site("bg").FastPathInstalled())
	require.NoError(t, Configure(engine.Options{}))
}
