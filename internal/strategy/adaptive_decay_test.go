package strategy

import (
	"testing"

	"adaptive-replication/internal/registry"

	"github.com/stretchr/testify/require"
)

func testParams() registry.StrategyParams {
	return registry.StrategyParams{
		DecayTime:     1,
		DecayFactor:   50,
		ReplThreshold: 100,
		RmvThreshold:  20,
		MaxStrength:   200,
		RStrength:     60,
		WStrength:     80,
		MinDCsNumber:  1,
	}
}

func TestEngine_InitStrategy_BootstrapsAtReplThreshold(t *testing.T) {
	e := NewEngine(map[string]Policy{"adaptive": AdaptiveDecay{}}, "adaptive")
	e.InitStrategy("k", "adaptive", true, testParams())
	require.Equal(t, 100.0, e.Strength("k"))
}

func TestEngine_InitStrategy_IdempotentWhenParamsUnchanged(t *testing.T) {
	e := NewEngine(map[string]Policy{"adaptive": AdaptiveDecay{}}, "adaptive")
	params := testParams()
	e.InitStrategy("k", "adaptive", true, params)
	e.LocalRead("k", "adaptive") // strength now 160

	e.InitStrategy("k", "adaptive", true, params)
	require.Equal(t, 160.0, e.Strength("k"), "re-init with identical params must not reset strength")
}

func TestEngine_InitStrategy_ResetsOnParamsChange(t *testing.T) {
	e := NewEngine(map[string]Policy{"adaptive": AdaptiveDecay{}}, "adaptive")
	params := testParams()
	e.InitStrategy("k", "adaptive", true, params)
	e.LocalRead("k", "adaptive")

	changed := params
	changed.MaxStrength = 10
	e.InitStrategy("k", "adaptive", true, changed)
	require.LessOrEqual(t, e.Strength("k"), 10.0, "a params change must clamp strength to the new ceiling")
}

func TestEngine_InitStrategy_NonReplicatedStubStartsAtZero(t *testing.T) {
	e := NewEngine(map[string]Policy{"adaptive": AdaptiveDecay{}}, "adaptive")
	e.InitStrategy("k", "adaptive", false, testParams())
	require.Equal(t, 0.0, e.Strength("k"), "a gossip-only stub must start at strength 0, not repl_threshold")
}

func TestEngine_LocalRead_AdmitsAtThreshold(t *testing.T) {
	e := NewEngine(map[string]Policy{"adaptive": AdaptiveDecay{}}, "adaptive")
	params := testParams()
	params.ReplThreshold = 50
	e.InitStrategy("k", "adaptive", false, params)

	d := e.LocalRead("k", "adaptive")
	require.Equal(t, ShouldReplicate, d, "rstrength(60) pushes strength to 60 >= repl_threshold(50)")
}

func TestEngine_LocalRead_TwoReadsNeededAtDefaultThreshold(t *testing.T) {
	// Mirrors spec.md's S2 scenario numbers: repl_threshold=100, rstrength=60.
	e := NewEngine(map[string]Policy{"adaptive": AdaptiveDecay{}}, "adaptive")
	e.InitStrategy("k", "adaptive", false, testParams())

	require.Equal(t, NoChange, e.LocalRead("k", "adaptive"), "one read (strength 60) must not yet admit")
	require.Equal(t, ShouldReplicate, e.LocalRead("k", "adaptive"), "second read (strength 120) crosses the threshold")
}

func TestEngine_Tick_DecaysAndEvicts(t *testing.T) {
	e := NewEngine(map[string]Policy{"adaptive": AdaptiveDecay{}}, "adaptive")
	e.InitStrategy("k", "adaptive", true, testParams()) // strength=100

	require.Equal(t, NoChange, e.Tick("k", "adaptive", 2)) // 100-50=50 > rmv_threshold(20)
	require.Equal(t, ShouldEvict, e.Tick("k", "adaptive", 2)) // 50-50=0 <= 20, |dcs|>1
}

func TestEngine_Tick_NeverEvictsLastReplica(t *testing.T) {
	e := NewEngine(map[string]Policy{"adaptive": AdaptiveDecay{}}, "adaptive")
	params := testParams()
	params.DecayFactor = 200 // force strength straight to 0
	e.InitStrategy("k", "adaptive", true, params)

	d := e.Tick("k", "adaptive", 1)
	require.Equal(t, LastReplicaRetained, d)
}

func TestEngine_Forget_ClearsState(t *testing.T) {
	e := NewEngine(map[string]Policy{"adaptive": AdaptiveDecay{}}, "adaptive")
	e.InitStrategy("k", "adaptive", true, testParams())
	e.Forget("k")
	require.Equal(t, 0.0, e.Strength("k"))
}
