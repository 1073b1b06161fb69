// Package registry is the Replica Registry (RR) of spec.md §4.2: the single
// source of truth for "who holds what". It tracks, for every key known to
// this data center, a ReplicaRecord describing replication state, strength,
// strategy parameters, and the set of data centers known to hold a copy.
package registry

import (
	"sync"

	"adaptive-replication/internal/dctype"
	"adaptive-replication/internal/rerr"
)

// StrategyParams configures the strategy engine for one key. Immutable once
// set unless an administrative reconfiguration path replaces it wholesale
// (spec.md §3) — init_strategy compares params by value to detect such a
// change (see internal/strategy). DecayTime is read only from the node's
// default configuration, where it sets the server's decay-tick period; a
// per-key DecayTime is stored but not consulted when ticking.
type StrategyParams struct {
	DecayTime     int64   `json:"decay_time"`     // seconds between decay ticks (node default only)
	DecayFactor   float64 `json:"decay_factor"`   // strength decrement per tick
	ReplThreshold float64 `json:"repl_threshold"` // admit at or above this strength
	RmvThreshold  float64 `json:"rmv_threshold"`  // may evict at or below this strength
	MaxStrength   float64 `json:"max_strength"`   // upper clamp
	RStrength     float64 `json:"rstrength"`      // gain per local read
	WStrength     float64 `json:"wstrength"`      // gain per local write
	MinDCsNumber  int     `json:"min_dcs_number"` // minimum replicas required at creation
}

// DefaultParams returns a sane, documented-in-spec default configuration.
func DefaultParams() StrategyParams {
	return StrategyParams{
		DecayTime:     1,
		DecayFactor:   10,
		ReplThreshold: 100,
		RmvThreshold:  20,
		MaxStrength:   200,
		RStrength:     60,
		WStrength:     80,
		MinDCsNumber:  1,
	}
}

// Record is one entry of the Replica Registry — spec.md §3's ReplicaRecord.
type Record struct {
	Key           string
	Replicated    bool
	Strength      float64
	Strategy      string // strategy-tag selecting the SE policy variant
	Params        StrategyParams
	DCs           map[dctype.DC]struct{}
	LastUpdateTS  dctype.Timestamp
}

// Clone returns a deep copy safe to hand to a caller outside the registry's
// lock.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.DCs = make(map[dctype.DC]struct{}, len(r.DCs))
	for dc := range r.DCs {
		cp.DCs[dc] = struct{}{}
	}
	return &cp
}

// HasDC reports whether dc is a known replica holder.
func (r *Record) HasDC(dc dctype.DC) bool {
	_, ok := r.DCs[dc]
	return ok
}

// DCList returns the known replica-holding DCs as a slice, order unspecified.
func (r *Record) DCList() []dctype.DC {
	out := make([]dctype.DC, 0, len(r.DCs))
	for dc := range r.DCs {
		out = append(out, dc)
	}
	return out
}

// Registry is the in-memory K → Record map, all writes serialized by mu.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// Create inserts a new record for key. Returns rerr.ErrAlreadyExists if one
// is already present — invariant 3 requires every successfully created key
// to have a non-empty dcs set, which callers must populate before calling.
func (r *Registry) Create(key string, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[key]; ok {
		return rerr.ErrAlreadyExists
	}
	r.records[key] = rec
	return nil
}

// Read returns a clone of the record for key, or rerr.ErrNotFound.
func (r *Registry) Read(key string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[key]
	if !ok {
		return nil, rerr.ErrNotFound
	}
	return rec.Clone(), nil
}

// Update replaces the record for key wholesale. Returns rerr.ErrNotFound if
// absent — registry entries are never implicitly created by Update.
func (r *Registry) Update(key string, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[key]; !ok {
		return rerr.ErrNotFound
	}
	r.records[key] = rec
	return nil
}

// Mutate applies fn to the record for key under the write lock and stores
// the result, letting callers perform read-modify-write atomically without
// a separate Read+Update round trip that could race with a concurrent
// mutation of the same key from another goroutine in the same process.
func (r *Registry) Mutate(key string, fn func(rec *Record) (*Record, error)) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.records[key]
	var in *Record
	if ok {
		in = existing.Clone()
	}
	out, err := fn(in)
	if err != nil {
		return nil, err
	}
	r.records[key] = out
	return out.Clone(), nil
}

// Remove deletes the record for key unconditionally. Absent keys are not an
// error (mirrors spec.md §4.2's idempotent remove).
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, key)
}

// Keys returns every key currently tracked, order unspecified. Used by the
// decay loop to drive periodic ticks without the registry needing to know
// anything about scheduling.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.records))
	for k := range r.records {
		out = append(out, k)
	}
	return out
}
