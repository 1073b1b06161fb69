package dctype

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimestampAfter_WallClockOrders(t *testing.T) {
	base := time.Now().UTC()
	older := Timestamp{Wall: base, From: "dc-a"}
	newer := Timestamp{Wall: base.Add(time.Second), From: "dc-a"}

	require.True(t, newer.After(older))
	require.False(t, older.After(newer))
}

func TestTimestampAfter_TieBreaksByDCIdentifier(t *testing.T) {
	same := time.Now().UTC()
	a := Timestamp{Wall: same, From: "dc-a"}
	b := Timestamp{Wall: same, From: "dc-b"}

	require.True(t, b.After(a), "lexicographically larger DC identifier wins ties")
	require.False(t, a.After(b))
	require.False(t, a.After(a), "a timestamp never happens after itself")
}

func TestNow_StampsSelf(t *testing.T) {
	ts := Now("dc-east")
	require.Equal(t, DC("dc-east"), ts.From)
	require.WithinDuration(t, time.Now().UTC(), ts.Wall, time.Second)
}
