package interdc

import "adaptive-replication/internal/registry"

// Wire types for the inter-DC RPC surface of spec.md §6. Field names are
// JSON-tagged directly since these messages never cross a language
// boundary other than this one.

type replicaLocationMsg struct {
	Key  string `json:"key"`
	From string `json:"from"`
}

type newReplicaMsg struct {
	Key      string                  `json:"key"`
	Value    []byte                  `json:"value"`
	Strategy string                  `json:"strategy"`
	Params   registry.StrategyParams `json:"params"`
	AllDCs   []string                `json:"all_dcs"`
}

type updateMsg struct {
	Key       string                  `json:"key"`
	Value     []byte                  `json:"value"`
	Params    registry.StrategyParams `json:"params"`
	TSWall    int64                   `json:"ts_wall_unixnano"`
	TSFrom    string                  `json:"ts_from"`
}

type evictSignalMsg struct {
	Key  string `json:"key"`
	From string `json:"from"`
}

type readResponseMsg struct {
	OK    bool   `json:"ok"`
	Value []byte `json:"value,omitempty"`
}

type simpleAckMsg struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
