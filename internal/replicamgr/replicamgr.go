// Package replicamgr is the Replica Manager (RM) of spec.md §4.5: the
// client-facing façade that serializes every operation on a key and
// orchestrates the Strategy Engine, Value Store, Replica Registry, and
// Inter-DC Manager to implement create/read/update/remove_replica.
package replicamgr

import (
	"context"
	"fmt"

	"adaptive-replication/internal/dctype"
	"adaptive-replication/internal/interdc"
	"adaptive-replication/internal/keylock"
	"adaptive-replication/internal/registry"
	"adaptive-replication/internal/rerr"
	"adaptive-replication/internal/strategy"
	"adaptive-replication/internal/valuestore"

	"github.com/rs/zerolog/log"
)

// lockShards bounds goroutine contention on the per-key lock table; it is
// independent of cluster size, matching the teacher's fixed vnode count
// used for a different purpose (see internal/keylock).
const lockShards = 256

// Manager is the Replica Manager for one data center.
type Manager struct {
	self  dctype.DC
	vs    *valuestore.Store
	rr    *registry.Registry
	se    *strategy.Engine
	idm   *interdc.Manager
	peers interdc.PeerDirectory
	locks *keylock.Table

	defaultStrategy string
}

// New wires a Manager from its four collaborators. idm.SetCallbacks(m) must
// be called by the caller immediately after, since IDM's inbound handlers
// need a reference back to RM (see interdc.RMCallbacks).
func New(self dctype.DC, vs *valuestore.Store, rr *registry.Registry, se *strategy.Engine, idm *interdc.Manager, peers interdc.PeerDirectory, defaultStrategy string) *Manager {
	return &Manager{
		self:            self,
		vs:              vs,
		rr:              rr,
		se:              se,
		idm:             idm,
		peers:           peers,
		locks:           keylock.NewTable(lockShards),
		defaultStrategy: defaultStrategy,
	}
}

var _ interdc.RMCallbacks = (*Manager)(nil)

// peerTargets returns every known DC except self, for gossip fan-out.
func (m *Manager) peerTargets() []dctype.DC {
	all := m.peers.All()
	out := make([]dctype.DC, 0, len(all))
	for _, dc := range all {
		if dc != m.self {
			out = append(out, dc)
		}
	}
	return out
}

func without(dcs []dctype.DC, self dctype.DC) []dctype.DC {
	out := make([]dctype.DC, 0, len(dcs))
	for _, dc := range dcs {
		if dc != self {
			out = append(out, dc)
		}
	}
	return out
}

// ─── Create ──────────────────────────────────────────────────────────────────

// Create implements spec.md §4.5 create(K,V,strategy,params). K must not
// already exist in the registry.
func (m *Manager) Create(ctx context.Context, key string, value []byte, strategyTag string, params registry.StrategyParams) error {
	if strategyTag == "" {
		strategyTag = m.defaultStrategy
	}

	var outerErr error
	m.locks.With(key, func() {
		if _, err := m.rr.Read(key); err == nil {
			outerErr = rerr.ErrAlreadyExists
			return
		}

		m.se.InitStrategy(key, strategyTag, true, params)
		strength := m.se.Strength(key)

		rec := &registry.Record{
			Key:          key,
			Replicated:   true,
			Strength:     strength,
			Strategy:     strategyTag,
			Params:       params,
			DCs:          map[dctype.DC]struct{}{m.self: {}},
			LastUpdateTS: dctype.Now(m.self),
		}
		if err := m.rr.Create(key, rec); err != nil {
			outerErr = err
			return
		}
		if err := m.vs.Put(key, value); err != nil {
			outerErr = rerr.Wrap(rerr.ErrBackend, err.Error())
			return
		}

		// Gossip our new replica location to every peer, then push full
		// replicas out to enough DCs to satisfy min_dcs_number. Partial
		// IDM failure is logged, not propagated (spec.md §4.5 step 6).
		peers := m.peerTargets()
		m.idm.GossipReplicaLocation(ctx, key, peers)

		needed := params.MinDCsNumber - 1
		if needed > 0 {
			targets := peers
			if len(targets) > needed {
				targets = targets[:needed]
			}
			allDCs := append([]dctype.DC{m.self}, targets...)
			outcomes := m.idm.PushNewReplica(ctx, key, value, strategyTag, params, allDCs, targets)
			var pushed []dctype.DC
			for _, o := range outcomes {
				if o.Err != nil {
					log.Warn().Str("key", key).Str("dc", string(o.DC)).Err(o.Err).
						Msg("push_new_replica failed during create; logged and ignored")
					continue
				}
				pushed = append(pushed, o.DC)
			}
			// Record the DCs just successfully pushed to: dcs is the set of
			// DCs known to hold a replica (spec.md §3), and the creator
			// already knows this without waiting for gossip back from the
			// target. Without this, fan_out_update/broadcast_evict would
			// never reach a pushed replica.
			if len(pushed) > 0 {
				_, _ = m.rr.Mutate(key, func(r *registry.Record) (*registry.Record, error) {
					if r == nil {
						return nil, rerr.ErrNotFound
					}
					for _, dc := range pushed {
						r.DCs[dc] = struct{}{}
					}
					return r, nil
				})
			}
		}
	})
	return outerErr
}

// ─── Read ────────────────────────────────────────────────────────────────────

// ReadResult is the value returned by Read.
type ReadResult struct {
	Value []byte
}

// Read implements spec.md §4.5 read(K).
func (m *Manager) Read(ctx context.Context, key string) (*ReadResult, error) {
	var (
		result *ReadResult
		outErr error
	)
	m.locks.With(key, func() {
		rec, err := m.rr.Read(key)
		strategyTag := m.defaultStrategy
		if err == nil {
			strategyTag = rec.Strategy
			// A record reachable only through AddDCToReplica's gossip stub
			// never ran through Create/AcceptNewReplica, so SE may not have
			// seen this key's params yet. InitStrategy is idempotent once
			// params match, so this is a no-op on every later call.
			m.se.InitStrategy(key, rec.Strategy, rec.Replicated, rec.Params)
		}
		decision := m.se.LocalRead(key, strategyTag)

		if v, ok := m.vs.Get(key); ok {
			// Already replicated here; a SHOULD_REPLICATE decision on a
			// hit is a no-op per spec.md §4.5 step 2.
			result = &ReadResult{Value: v}
			return
		}

		if err != nil || len(rec.DCs) == 0 {
			outErr = rerr.ErrNotFound
			return
		}

		targets := without(rec.DCList(), m.self)
		val, fromDC, rerrv := m.idm.ReadFromAny(ctx, key, targets)
		if rerrv != nil {
			outErr = rerrv
			return
		}

		if decision == strategy.ShouldReplicate {
			if err := m.vs.Put(key, val); err != nil {
				outErr = rerr.Wrap(rerr.ErrBackend, err.Error())
				return
			}
			newRec, err := m.rr.Mutate(key, func(r *registry.Record) (*registry.Record, error) {
				if r == nil {
					r = &registry.Record{Key: key, Params: rec.Params, Strategy: rec.Strategy, DCs: map[dctype.DC]struct{}{}}
				}
				r.Replicated = true
				r.DCs[m.self] = struct{}{}
				r.Strength = rec.Params.ReplThreshold
				r.LastUpdateTS = dctype.Now(m.self)
				return r, nil
			})
			if err != nil {
				outErr = err
				return
			}
			m.se.InitStrategy(key, newRec.Strategy, true, newRec.Params)
			m.idm.GossipReplicaLocation(ctx, key, m.peerTargets())
		}
		_ = fromDC
		result = &ReadResult{Value: val}
	})
	if outErr != nil {
		return nil, outErr
	}
	return result, nil
}

// ─── Update ──────────────────────────────────────────────────────────────────

// Update implements spec.md §4.5 update(K,V).
func (m *Manager) Update(ctx context.Context, key string, value []byte) error {
	var outErr error
	m.locks.With(key, func() {
		ts := dctype.Now(m.self)

		rec, err := m.rr.Read(key)
		if err != nil {
			outErr = rerr.ErrNotFound
			return
		}
		m.se.LocalWrite(key, rec.Strategy)

		if rec.Replicated {
			if err := m.vs.Put(key, value); err != nil {
				outErr = rerr.Wrap(rerr.ErrBackend, err.Error())
				return
			}
			_, err = m.rr.Mutate(key, func(r *registry.Record) (*registry.Record, error) {
				if r == nil {
					return nil, rerr.ErrNotFound
				}
				r.LastUpdateTS = ts
				return r, nil
			})
			if err != nil {
				outErr = err
				return
			}
		}

		targets := without(rec.DCList(), m.self)
		outcomes := m.idm.FanOutUpdate(ctx, targets, key, value, rec.Params, ts)
		for _, o := range outcomes {
			if o.Err != nil {
				log.Warn().Str("key", key).Str("dc", string(o.DC)).Err(o.Err).
					Msg("fan_out_update failed; logged and not retried")
			}
		}
	})
	return outErr
}

// ─── RemoveReplica ───────────────────────────────────────────────────────────

// RemoveReplica implements spec.md §4.5 remove_replica(K): local eviction
// only, the global key persists at other DCs.
func (m *Manager) RemoveReplica(ctx context.Context, key string) error {
	var outErr error
	m.locks.With(key, func() {
		rec, err := m.rr.Read(key)
		if err != nil {
			return // absent key: ok, nothing to remove
		}
		if err := m.vs.Remove(key); err != nil {
			outErr = rerr.Wrap(rerr.ErrBackend, err.Error())
			return
		}
		remaining := without(rec.DCList(), m.self)
		newRec, err := m.rr.Mutate(key, func(r *registry.Record) (*registry.Record, error) {
			if r == nil {
				return nil, rerr.ErrNotFound
			}
			r.Replicated = false
			r.Strength = 0
			delete(r.DCs, m.self)
			return r, nil
		})
		if err != nil {
			outErr = err
			return
		}
		m.se.InitStrategy(key, newRec.Strategy, false, newRec.Params)
		m.idm.BroadcastEvict(ctx, remaining, key)
	})
	return outErr
}

// ─── Inbound gossip targets (interdc.RMCallbacks) ───────────────────────────

// AddDCToReplica implements spec.md §4.5's add_dc_to_replica: idempotent
// set mutation, creating a non-replicated stub record if none exists.
func (m *Manager) AddDCToReplica(key string, from dctype.DC) {
	m.locks.With(key, func() {
		_, _ = m.rr.Mutate(key, func(r *registry.Record) (*registry.Record, error) {
			if r == nil {
				r = &registry.Record{
					Key:        key,
					Replicated: false,
					Strategy:   m.defaultStrategy,
					Params:     registry.DefaultParams(),
					DCs:        map[dctype.DC]struct{}{},
				}
			}
			r.DCs[from] = struct{}{}
			return r, nil
		})
	})
}

// RemoveDCFromReplica is the symmetric remove_dc_from_replica.
func (m *Manager) RemoveDCFromReplica(key string, from dctype.DC) {
	m.locks.With(key, func() {
		_, _ = m.rr.Mutate(key, func(r *registry.Record) (*registry.Record, error) {
			if r == nil {
				return nil, rerr.ErrNotFound
			}
			delete(r.DCs, from)
			return r, nil
		})
	})
}

// AcceptNewReplica implements on_new_replica inbound.
func (m *Manager) AcceptNewReplica(key string, value []byte, strategyTag string, params registry.StrategyParams, allDCs []dctype.DC) {
	m.locks.With(key, func() {
		if err := m.vs.Put(key, value); err != nil {
			log.Error().Str("key", key).Err(err).Msg("accept_new_replica: value store write failed")
			return
		}
		dcs := make(map[dctype.DC]struct{}, len(allDCs))
		for _, dc := range allDCs {
			dcs[dc] = struct{}{}
		}
		dcs[m.self] = struct{}{}
		rec := &registry.Record{
			Key:          key,
			Replicated:   true,
			Strength:     params.ReplThreshold,
			Strategy:     strategyTag,
			Params:       params,
			DCs:          dcs,
			LastUpdateTS: dctype.Now(m.self),
		}
		if err := m.rr.Create(key, rec); err != nil {
			// Already exists locally — overwrite, new_replica is
			// idempotent establishment from the pushing DC's perspective.
			_, _ = m.rr.Mutate(key, func(*registry.Record) (*registry.Record, error) { return rec, nil })
		}
		m.se.InitStrategy(key, strategyTag, true, params)
	})
}

// AcceptUpdate implements on_update inbound: last-writer-wins by timestamp,
// tie-broken lexicographically by DC identifier (SPEC_FULL.md §9.1).
func (m *Manager) AcceptUpdate(key string, value []byte, params registry.StrategyParams, ts dctype.Timestamp) {
	m.locks.With(key, func() {
		rec, err := m.rr.Read(key)
		if err != nil {
			log.Debug().Str("key", key).Msg("accept_update: no local record, dropping")
			return
		}
		if !ts.After(rec.LastUpdateTS) {
			return // older or equal-and-losing-tiebreak: drop
		}
		if err := m.vs.Put(key, value); err != nil {
			log.Error().Str("key", key).Err(err).Msg("accept_update: value store write failed")
			return
		}
		_, _ = m.rr.Mutate(key, func(r *registry.Record) (*registry.Record, error) {
			if r == nil {
				return nil, fmt.Errorf("record vanished during update")
			}
			r.LastUpdateTS = ts
			return r, nil
		})
	})
}

// ServeRead implements on_read inbound, answered via VS.
func (m *Manager) ServeRead(key string) ([]byte, bool) {
	return m.vs.Get(key)
}

// ─── Decay ticking ───────────────────────────────────────────────────────────

// Tick drives one decay tick across every key this DC currently tracks,
// implementing spec.md §4.3's periodic tick(K) event and its resulting
// SHOULD_EVICT action. Called on a fixed interval by the server's decay
// loop (cmd/server/main.go), whose period is the node's default decay_time
// in seconds. Ticks are process-wide, not per-key scheduled: every tick
// applies one decay step to every key, and a key's own Params.DecayTime is
// not consulted.
func (m *Manager) Tick(ctx context.Context) {
	for _, key := range m.rr.Keys() {
		m.tickOne(ctx, key)
	}
}

func (m *Manager) tickOne(ctx context.Context, key string) {
	m.locks.With(key, func() {
		rec, err := m.rr.Read(key)
		if err != nil {
			return
		}
		decision := m.se.Tick(key, rec.Strategy, len(rec.DCs))
		if decision != strategy.ShouldEvict {
			return
		}
		if err := m.vs.Remove(key); err != nil {
			log.Error().Str("key", key).Err(err).Msg("tick: evict value store removal failed")
			return
		}
		remaining := without(rec.DCList(), m.self)
		newRec, err := m.rr.Mutate(key, func(r *registry.Record) (*registry.Record, error) {
			if r == nil {
				return nil, rerr.ErrNotFound
			}
			r.Replicated = false
			r.Strength = 0
			delete(r.DCs, m.self)
			return r, nil
		})
		if err != nil {
			log.Error().Str("key", key).Err(err).Msg("tick: registry mutation failed")
			return
		}
		m.se.InitStrategy(key, newRec.Strategy, false, newRec.Params)
		m.idm.BroadcastEvict(ctx, remaining, key)
	})
}
