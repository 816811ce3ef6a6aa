package expand

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/spreadcall/internal/spread/realm"
)

func TestExpand_DefaultProtocol(t *testing.T) {
	r := realm.New()
	e := NewExecutor(0)

	got, err := e.Expand(r.NewArray(1.0, "two", true))
	require.NoError(t, err)
	if diff := cmp.Diff([]realm.Value{1.0, "two", true}, got); diff != "" {
		t.Errorf("Expand() mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_HolesReadUndefined(t *testing.T) {
	r := realm.New()
	arr := r.NewArray(1.0, 2.0, 3.0)
	arr.DeleteElement(1)

	got, err := NewExecutor(0).Expand(arr)
	require.NoError(t, err)
	assert.Equal(t, []realm.Value{1.0, realm.Undefined, 3.0}, got)
}

func TestExpand_OwnIteratorOverride(t *testing.T) {
	r := realm.New()
	other := r.NewArray(3.0, 4.0)
	myIter := r.NewFunction("MyIter", func(realm.Value, []realm.Value) (realm.Value, error) {
		return r.DefaultIterator().Call(other, nil)
	})

	arr := r.NewArray(1.0, 2.0)
	arr.Set(realm.SymbolIterator, myIter)

	got, err := NewExecutor(0).Expand(arr)
	require.NoError(t, err)
	assert.Equal(t, []realm.Value{3.0, 4.0}, got)
}

func TestExpand_CustomNext(t *testing.T) {
	r := realm.New()
	count := 0
	r.ArrayIteratorPrototype().Set(realm.KeyNext, r.NewFunction("next", func(realm.Value, []realm.Value) (realm.Value, error) {
		count++
		return r.NewIterResult(float64(count*10), count > 3), nil
	}))

	got, err := NewExecutor(0).Expand(r.NewArray(1.0))
	require.NoError(t, err)
	assert.Equal(t, []realm.Value{10.0, 20.0, 30.0}, got)
}

func TestExpand_Errors(t *testing.T) {
	r := realm.New()

	_, err := NewExecutor(0).Expand(5.0)
	assert.ErrorIs(t, err, ErrNotIterable)

	_, err = NewExecutor(0).Expand(r.NewObject(nil))
	assert.ErrorIs(t, err, ErrNotIterable)

	bad := r.NewArray()
	bad.Set(realm.SymbolIterator, r.NewFunction("bad", func(realm.Value, []realm.Value) (realm.Value, error) {
		return 1.0, nil
	}))
	_, err = NewExecutor(0).Expand(bad)
	assert.ErrorIs(t, err, ErrBadIterator)

	_, err = NewExecutor(2).Expand(r.NewArray(1.0, 2.0, 3.0))
	assert.ErrorIs(t, err, ErrTooManyArguments)
}
