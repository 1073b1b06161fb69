package interdc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"adaptive-replication/internal/dctype"
	"adaptive-replication/internal/registry"
	"adaptive-replication/internal/rerr"

	"golang.org/x/sync/errgroup"
)

// Retry parameters for idempotent gossip primitives — ported from the
// teacher's replicateWithRetryAndResponse. Only GossipReplicaLocation and
// BroadcastEvict use this: replaying either twice is harmless (both are
// "I hold this key" / "I dropped this key" signals, not state-setting
// writes), so a transient failure is worth masking with a retry rather than
// surfacing immediately the way FanOutUpdate/PushNewReplica do.
const (
	gossipMaxRetries     = 3
	gossipInitialBackoff = 100 * time.Millisecond
)

// withRetryBackoff calls fn up to maxRetries times in total, waiting
// initialBackoff before the second call and doubling the wait before each
// later one, returning the last error if every attempt fails. Aborts early if ctx is cancelled
// while waiting out a backoff.
func withRetryBackoff(ctx context.Context, maxRetries int, initialBackoff time.Duration, fn func() error) error {
	backoff := initialBackoff
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}

// Outcome is the per-target result of a fan-out primitive. Fan-out
// primitives aggregate these and report them to the caller rather than
// retrying internally (spec.md §4.4).
type Outcome struct {
	DC  dctype.DC
	Err error
}

// fanOut runs fn concurrently against every target and collects an Outcome
// per target. It never short-circuits on a target's failure — every target
// is attempted exactly once, matching "a partial failure is reported, not
// retried inside IDM". errgroup is used purely as synchronized goroutine
// bookkeeping here: fn's own error is captured into the Outcome slice, not
// returned to the group, so one target's failure never cancels the others.
func fanOut(ctx context.Context, targets []dctype.DC, fn func(ctx context.Context, dc dctype.DC) error) []Outcome {
	outcomes := make([]Outcome, len(targets))
	g, gctx := errgroup.WithContext(context.Background()) // independent of caller cancellation per target
	_ = gctx
	for i, dc := range targets {
		i, dc := i, dc
		g.Go(func() error {
			outcomes[i] = Outcome{DC: dc, Err: fn(ctx, dc)}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// GossipReplicaLocation informs every peer DC that Self now replicates key.
// Best-effort, fire-and-forget: failures are logged, never surfaced
// (spec.md §4.4, §7).
func (m *Manager) GossipReplicaLocation(ctx context.Context, key string, targets []dctype.DC) []Outcome {
	outcomes := fanOut(ctx, targets, func(ctx context.Context, dc dctype.DC) error {
		err := withRetryBackoff(ctx, gossipMaxRetries, gossipInitialBackoff, func() error {
			cctx, cancel := context.WithTimeout(ctx, m.StateChangeDeadline)
			defer cancel()
			return m.postJSON(cctx, dc, "/internal/replica-location", replicaLocationMsg{
				Key: key, From: string(m.Self),
			}, nil)
		})
		recordOutcome("gossip_replica_location", err)
		if err != nil {
			logPartialFailure("gossip_replica_location", key, dc, err)
		}
		return err
	})
	return outcomes
}

// PushNewReplica instructs each target to create a replica of key with the
// given value, strategy, params, and full DC set (spec.md §4.4).
func (m *Manager) PushNewReplica(ctx context.Context, key string, value []byte, strategyTag string, params registry.StrategyParams, allDCs []dctype.DC, targets []dctype.DC) []Outcome {
	allStrs := make([]string, len(allDCs))
	for i, dc := range allDCs {
		allStrs[i] = string(dc)
	}
	return fanOut(ctx, targets, func(ctx context.Context, dc dctype.DC) error {
		cctx, cancel := context.WithTimeout(ctx, m.StateChangeDeadline)
		defer cancel()
		err := m.postJSON(cctx, dc, "/internal/new-replica", newReplicaMsg{
			Key: key, Value: value, Strategy: strategyTag, Params: params, AllDCs: allStrs,
		}, nil)
		recordOutcome("push_new_replica", err)
		if err != nil {
			logPartialFailure("push_new_replica", key, dc, err)
		}
		return err
	})
}

// FanOutUpdate overwrites key's value at every target with a last-writer-wins
// timestamp stamp (spec.md §4.4).
func (m *Manager) FanOutUpdate(ctx context.Context, targets []dctype.DC, key string, value []byte, params registry.StrategyParams, ts dctype.Timestamp) []Outcome {
	return fanOut(ctx, targets, func(ctx context.Context, dc dctype.DC) error {
		cctx, cancel := context.WithTimeout(ctx, m.StateChangeDeadline)
		defer cancel()
		err := m.postJSON(cctx, dc, "/internal/update", updateMsg{
			Key: key, Value: value, Params: params,
			TSWall: ts.Wall.UnixNano(), TSFrom: string(ts.From),
		}, nil)
		recordOutcome("fan_out_update", err)
		if err != nil {
			logPartialFailure("fan_out_update", key, dc, err)
		}
		return err
	})
}

// BroadcastEvict tells every target to drop Self from key's dcs set
// (spec.md §4.4). Fire-and-forget like gossip.
func (m *Manager) BroadcastEvict(ctx context.Context, targets []dctype.DC, key string) []Outcome {
	return fanOut(ctx, targets, func(ctx context.Context, dc dctype.DC) error {
		err := withRetryBackoff(ctx, gossipMaxRetries, gossipInitialBackoff, func() error {
			cctx, cancel := context.WithTimeout(ctx, m.StateChangeDeadline)
			defer cancel()
			return m.postJSON(cctx, dc, "/internal/evict", evictSignalMsg{
				Key: key, From: string(m.Self),
			}, nil)
		})
		recordOutcome("broadcast_evict", err)
		if err != nil {
			logPartialFailure("broadcast_evict", key, dc, err)
		}
		return err
	})
}

// ReadFromAny tries each target sequentially and returns the first ok
// response, per spec.md §4.4. If every target fails or returns not-found,
// it returns rerr.ErrNoDCs.
func (m *Manager) ReadFromAny(ctx context.Context, key string, targets []dctype.DC) ([]byte, dctype.DC, error) {
	var lastErr error
	for _, dc := range targets {
		cctx, cancel := context.WithTimeout(ctx, m.QueryDeadline)
		val, err := m.getRead(cctx, dc, key)
		cancel()
		recordOutcome("read_from_any", err)
		if err == nil {
			return val, dc, nil
		}
		lastErr = err
		logPartialFailure("read_from_any", key, dc, err)
	}
	// Every candidate failed (or the list was empty): per spec.md §4.4 this
	// primitive reports no_dcs, while RM's caller-facing error preserves
	// the last underlying cause for diagnostics.
	if lastErr == nil {
		return nil, "", rerr.ErrNoDCs
	}
	return nil, "", rerr.Wrap(rerr.ErrNoDCs, lastErr.Error())
}

// ─── HTTP transport ────────────────────────────────────────────────────────

func (m *Manager) postJSON(ctx context.Context, dc dctype.DC, path string, body, out any) error {
	url, ok := m.peerURL(dc, path)
	if !ok {
		return fmt.Errorf("no address for dc %q", dc)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return classifyTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("peer %s returned HTTP %d", dc, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (m *Manager) getRead(ctx context.Context, dc dctype.DC, key string) ([]byte, error) {
	url, ok := m.peerURL(dc, "/internal/read/"+key)
	if !ok {
		return nil, fmt.Errorf("no address for dc %q", dc)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, rerr.ErrNoReplica
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("peer %s returned HTTP %d", dc, resp.StatusCode)
	}
	var out readResponseMsg
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, rerr.ErrNoReplica
	}
	return out.Value, nil
}

func classifyTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return rerr.Wrap(rerr.ErrTimeout, err.Error())
	}
	return err
}
