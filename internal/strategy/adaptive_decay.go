package strategy

import "adaptive-replication/internal/registry"

// AdaptiveDecay implements the single concrete policy described in
// spec.md §4.3: a strength counter that rises on local reads/writes, decays
// on tick, and drives inclusive-threshold admit/evict decisions.
type AdaptiveDecay struct{}

var _ Policy = AdaptiveDecay{}

// Init bootstraps strength on first call for a key and is otherwise
// idempotent: calling it again with identical params leaves strength
// untouched (spec.md §9's resolution of the init_strategy ambiguity —
// strength resets ONLY when params actually change). A replicated key
// starts at repl_threshold (spec.md §4.5's create/on_new_replica paths); a
// gossip-only stub starts at 0, matching add_dc_to_replica's literal
// `{replicated:false, strength:0, ...}` (spec.md §4.5) and letting read
// pressure accumulate it from zero (scenario S2).
func (AdaptiveDecay) Init(st *keyState, replicatedHere bool, params registry.StrategyParams) {
	if !st.initialized {
		st.params = params
		st.replicatedHere = replicatedHere
		if replicatedHere {
			st.strength = params.ReplThreshold
		}
		st.initialized = true
		return
	}
	if st.params != params {
		st.params = params
		st.strength = 0
		if replicatedHere {
			st.strength = params.ReplThreshold
		}
		st.strength = clamp(st.strength, params.MaxStrength)
	}
	st.replicatedHere = replicatedHere
}

// OnRead: strength += rstrength, clamped; admits if not yet replicated and
// strength has reached repl_threshold (inclusive).
func (AdaptiveDecay) OnRead(st *keyState) Decision {
	st.strength = clamp(st.strength+st.params.RStrength, st.params.MaxStrength)
	if !st.replicatedHere && st.strength >= st.params.ReplThreshold {
		return ShouldReplicate
	}
	return NoChange
}

// OnWrite: strength += wstrength, clamped; same admission check as OnRead.
func (AdaptiveDecay) OnWrite(st *keyState) Decision {
	st.strength = clamp(st.strength+st.params.WStrength, st.params.MaxStrength)
	if !st.replicatedHere && st.strength >= st.params.ReplThreshold {
		return ShouldReplicate
	}
	return NoChange
}

// OnTick: strength -= decay_factor, floored at 0; evicts if replicated here
// and strength has decayed to rmv_threshold (inclusive) AND more than one
// DC holds the key — the last remaining replica is never evicted, reported
// instead as LastReplicaRetained telemetry (spec.md §4.3, scenario S6).
func (AdaptiveDecay) OnTick(st *keyState, dcCount int) Decision {
	st.strength = clampFloor(st.strength - st.params.DecayFactor)
	if !st.replicatedHere || st.strength > st.params.RmvThreshold {
		return NoChange
	}
	if dcCount <= 1 {
		return LastReplicaRetained
	}
	return ShouldEvict
}

func clamp(v, max float64) float64 {
	if v > max {
		return max
	}
	if v < 0 {
		return 0
	}
	return v
}

func clampFloor(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
