// Package strategy is the Strategy Engine (SE) of spec.md §4.3: a per-key
// decaying-strength state machine that decides, but never itself performs,
// admission and eviction. RM observes each Decision and acts on the
// registry, the value store, and the inter-DC manager.
//
// The design generalizes a single concrete policy, AdaptiveDecay, behind a
// Policy interface so that future variants select by the record's strategy
// tag without touching RM or registry — "adding a policy means adding a
// variant, not extending a registry" (spec.md §9).
package strategy

import (
	"sync"

	"adaptive-replication/internal/registry"

	"github.com/prometheus/client_golang/prometheus"
)

// Decision is what a Policy event handler returns. RM inspects it and
// decides what (if anything) to do next; the engine itself never mutates
// external state.
type Decision int

const (
	NoChange Decision = iota
	ShouldReplicate
	ShouldEvict
	// LastReplicaRetained signals that an eviction was suppressed because
	// this DC holds the sole remaining replica (spec.md §4.3 tie-break).
	LastReplicaRetained
)

// Policy is the tagged-variant interface every strategy implementation
// satisfies. All methods are pure with respect to external state: they read
// and update only the keyState passed to them and return a Decision.
type Policy interface {
	// Init bootstraps state for a key. Idempotent: calling it twice with an
	// unchanged params value leaves strength untouched.
	Init(st *keyState, replicatedHere bool, params registry.StrategyParams)
	OnRead(st *keyState) Decision
	OnWrite(st *keyState) Decision
	OnTick(st *keyState, dcCount int) Decision
}

// keyState is the mutable state the engine keeps per key. It lives inside
// Engine's map, guarded by Engine.mu; policies never see it outside that
// lock.
type keyState struct {
	strength       float64
	params         registry.StrategyParams
	replicatedHere bool
	initialized    bool
}

var (
	decisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adaptive_replication_se_decisions_total",
		Help: "Strategy engine decisions emitted, by decision kind.",
	}, []string{"decision"})
	strengthGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "adaptive_replication_se_strength",
		Help: "Current per-key strength value, by key.",
	}, []string{"key"})
)

func init() {
	prometheus.MustRegister(decisionsTotal, strengthGauge)
}

// Engine owns one keyState per key and dispatches events to the policy
// selected by each record's strategy tag. It is the process-wide SE actor:
// single lock, sequential per-key mutation, concurrent across keys in the
// sense that no goroutine blocks on another key's work.
type Engine struct {
	mu       sync.Mutex
	byKey    map[string]*keyState
	policies map[string]Policy
	defTag   string
}

// NewEngine creates an Engine with the given named policies. defTag selects
// the policy used when a record's Strategy tag is empty.
func NewEngine(policies map[string]Policy, defTag string) *Engine {
	return &Engine{
		byKey:    make(map[string]*keyState),
		policies: policies,
		defTag:   defTag,
	}
}

func (e *Engine) policyFor(tag string) Policy {
	if tag == "" {
		tag = e.defTag
	}
	return e.policies[tag]
}

// InitStrategy bootstraps (or idempotently re-affirms) the state machine
// for key under the named strategy tag.
func (e *Engine) InitStrategy(key, tag string, replicatedHere bool, params registry.StrategyParams) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.byKey[key]
	if !ok {
		st = &keyState{}
		e.byKey[key] = st
	}
	p := e.policyFor(tag)
	if p == nil {
		p = e.policyFor(e.defTag)
	}
	p.Init(st, replicatedHere, params)
	strengthGauge.WithLabelValues(key).Set(st.strength)
}

// LocalRead processes a local_read(K) event and returns the policy's decision.
func (e *Engine) LocalRead(key, tag string) Decision {
	return e.dispatch(key, tag, func(p Policy, st *keyState) Decision {
		return p.OnRead(st)
	})
}

// LocalWrite processes a local_write(K) event and returns the policy's decision.
func (e *Engine) LocalWrite(key, tag string) Decision {
	return e.dispatch(key, tag, func(p Policy, st *keyState) Decision {
		return p.OnWrite(st)
	})
}

// Tick processes a periodic decay tick for key, given the current number of
// DCs known to hold a replica (needed for the "never evict the last
// replica" tie-break).
func (e *Engine) Tick(key, tag string, dcCount int) Decision {
	return e.dispatch(key, tag, func(p Policy, st *keyState) Decision {
		return p.OnTick(st, dcCount)
	})
}

// Strength returns the current strength for key, or 0 if unknown.
func (e *Engine) Strength(key string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.byKey[key]; ok {
		return st.strength
	}
	return 0
}

// Forget drops a key's state entirely — called when the key is globally
// deleted (out of scope for v1 per spec.md §4.6, but provided for
// completeness and exercised by tests that simulate key deletion).
func (e *Engine) Forget(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.byKey, key)
	strengthGauge.DeleteLabelValues(key)
}

func (e *Engine) dispatch(key, tag string, fn func(Policy, *keyState) Decision) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.byKey[key]
	if !ok {
		st = &keyState{}
		e.byKey[key] = st
	}
	p := e.policyFor(tag)
	if p == nil {
		return NoChange
	}
	d := fn(p, st)
	strengthGauge.WithLabelValues(key).Set(st.strength)
	decisionsTotal.WithLabelValues(decisionLabel(d)).Inc()
	return d
}

func decisionLabel(d Decision) string {
	switch d {
	case ShouldReplicate:
		return "should_replicate"
	case ShouldEvict:
		return "should_evict"
	case LastReplicaRetained:
		return "last_replica_retained"
	default:
		return "no_change"
	}
}
