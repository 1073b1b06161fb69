package registry

import (
	"testing"

	"adaptive-replication/internal/dctype"
	"adaptive-replication/internal/rerr"

	"github.com/stretchr/testify/require"
)

func newRecord(key string) *Record {
	return &Record{
		Key:        key,
		Replicated: true,
		Strength:   100,
		Strategy:   "adaptive",
		Params:     DefaultParams(),
		DCs:        map[dctype.DC]struct{}{"dc-a": {}},
	}
}

func TestCreate_RejectsDuplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.Create("k", newRecord("k")))
	require.ErrorIs(t, r.Create("k", newRecord("k")), rerr.ErrAlreadyExists)
}

func TestRead_NotFound(t *testing.T) {
	r := New()
	_, err := r.Read("missing")
	require.ErrorIs(t, err, rerr.ErrNotFound)
}

func TestRead_ReturnsIndependentClone(t *testing.T) {
	r := New()
	require.NoError(t, r.Create("k", newRecord("k")))

	got, err := r.Read("k")
	require.NoError(t, err)
	got.DCs["dc-b"] = struct{}{}

	again, err := r.Read("k")
	require.NoError(t, err)
	require.False(t, again.HasDC("dc-b"), "mutating a returned clone must not affect stored state")
}

func TestMutate_AtomicReadModifyWrite(t *testing.T) {
	r := New()
	require.NoError(t, r.Create("k", newRecord("k")))

	out, err := r.Mutate("k", func(rec *Record) (*Record, error) {
		rec.Strength = 42
		rec.DCs["dc-b"] = struct{}{}
		return rec, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42.0, out.Strength)

	again, err := r.Read("k")
	require.NoError(t, err)
	require.Equal(t, 42.0, again.Strength)
	require.True(t, again.HasDC("dc-b"))
}

func TestMutate_AbsentKeyPassesNil(t *testing.T) {
	r := New()
	out, err := r.Mutate("missing", func(rec *Record) (*Record, error) {
		require.Nil(t, rec)
		return newRecord("missing"), nil
	})
	require.NoError(t, err)
	require.Equal(t, "missing", out.Key)
}

func TestRemove_IsIdempotent(t *testing.T) {
	r := New()
	require.NoError(t, r.Create("k", newRecord("k")))
	r.Remove("k")
	r.Remove("k") // must not panic or error
	_, err := r.Read("k")
	require.ErrorIs(t, err, rerr.ErrNotFound)
}

func TestKeys_ListsAllTrackedKeys(t *testing.T) {
	r := New()
	require.NoError(t, r.Create("a", newRecord("a")))
	require.NoError(t, r.Create("b", newRecord("b")))
	require.ElementsMatch(t, []string{"a", "b"}, r.Keys())
}
