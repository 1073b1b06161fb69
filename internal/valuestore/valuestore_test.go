package valuestore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetRemove(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Get("k")
	require.False(t, ok)

	require.NoError(t, s.Put("k", []byte("v1")))
	v, ok := s.Get("k")
	require.True(t, ok)
	require.Equal(t, "v1", string(v))

	require.NoError(t, s.Remove("k"))
	_, ok = s.Get("k")
	require.False(t, ok)

	require.NoError(t, s.Remove("k"), "removing an absent key is not an error")
}

func TestSnapshot_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put("k1", []byte("v1")))
	require.NoError(t, s.Put("k2", []byte("v2")))
	require.NoError(t, s.Snapshot())
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok := reopened.Get("k1")
	require.True(t, ok)
	require.Equal(t, "v1", string(v))
	v, ok = reopened.Get("k2")
	require.True(t, ok)
	require.Equal(t, "v2", string(v))
}

func TestWALReplay_RecoversUnsnapshottedWrites(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put("k", []byte("v1")))
	require.NoError(t, s.Put("k", []byte("v2")))
	require.NoError(t, s.Close()) // no snapshot taken — WAL is the only record

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok := reopened.Get("k")
	require.True(t, ok)
	require.Equal(t, "v2", string(v), "WAL replay must apply writes in order")
}

func TestWALReplay_AppliesRemoves(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put("k", []byte("v1")))
	require.NoError(t, s.Remove("k"))
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	_, ok := reopened.Get("k")
	require.False(t, ok)
}

func TestWALReplay_StopsAtCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put("k1", []byte("v1")))
	require.NoError(t, s.Close())

	f, err := os.OpenFile(dir+"/data_item.wal", os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{not valid json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok := reopened.Get("k1")
	require.True(t, ok, "entries before the corrupt one must still replay")
	require.Equal(t, "v1", string(v))
}

func TestContains(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.False(t, s.Contains("k"))
	require.NoError(t, s.Put("k", []byte("v")))
	require.True(t, s.Contains("k"))
}
