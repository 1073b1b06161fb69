package membership

import (
	"os"
	"path/filepath"
	"testing"

	"adaptive-replication/internal/dctype"

	"github.com/stretchr/testify/require"
)

func TestJoinLeave(t *testing.T) {
	m := New()
	m.Join("dc-a", "10.0.0.1:8080")

	addr, ok := m.AddressOf("dc-a")
	require.True(t, ok)
	require.Equal(t, "10.0.0.1:8080", addr)

	m.Leave("dc-a")
	_, ok = m.AddressOf("dc-a")
	require.False(t, ok)
}

func TestLoadFile_ParsesRosterIgnoringCommentsAndBlanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dcs.conf")
	contents := "# comment\n\ndc-a=10.0.0.1:8080\ndc-b=10.0.0.2:8080\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	m, err := LoadFile(path)
	require.NoError(t, err)
	require.ElementsMatch(t, []dctype.DC{"dc-a", "dc-b"}, m.All())
}

func TestLoadFile_RejectsMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dcs.conf")
	require.NoError(t, os.WriteFile(path, []byte("not-valid-entry\n"), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
}
