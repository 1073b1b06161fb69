// Package dctype holds the small set of identifier and timestamp types
// shared by every component of the replication engine (registry, strategy,
// interdc, replicamgr). Keeping them in their own package avoids an import
// cycle between registry and interdc, both of which need to name a DC and
// compare timestamps without depending on each other.
package dctype

import "time"

// DC is a stable, network-addressable identifier for a data center, e.g.
// "dc-east" or "10.0.1.4:7070". Equality is plain string equality.
type DC string

// Timestamp is a monotonic, comparable ordering token used only for
// last-writer-wins resolution during update fan-out. Wall-clock time is
// sufficient per the data model; ties are broken by DC identifier.
type Timestamp struct {
	Wall time.Time
	From DC
}

// After reports whether t happened strictly after o, breaking ties on equal
// wall-clock values by the lexicographically larger DC identifier so that
// the comparison is a total order (resolves the spec's open question on
// concurrent-write tie-breaking deterministically).
func (t Timestamp) After(o Timestamp) bool {
	if t.Wall.Equal(o.Wall) {
		return t.From > o.From
	}
	return t.Wall.After(o.Wall)
}

// Now returns a fresh Timestamp stamped with the given origin DC.
func Now(self DC) Timestamp {
	return Timestamp{Wall: time.Now().UTC(), From: self}
}
