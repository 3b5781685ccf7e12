package epoch

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"maxpower/internal/config"
	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
	"maxpower/internal/trace"
)

func TestNewPlan_DefaultProfile(t *testing.T) {
	p, err := NewPlan(config.Default().Subsystems)
	require.NoError(t, err)
	require.Equal(t, []string{
		regmap.BlockADC,
		regmap.BlockI2C0, regmap.BlockI2C1, regmap.BlockI2C2,
		regmap.BlockVerifier,
		regmap.BlockSPIHost1,
		regmap.BlockCSRNG,
		regmap.BlockHMAC,
		regmap.BlockKMAC,
		regmap.BlockAES,
	}, p.Order())
	require.Equal(t, 0, p.MarkerIndex)
	require.Equal(t, regmap.BlockADC, p.MarkerBefore())
	require.Equal(t, regmap.BlockAES, p.PollTarget())
}

func TestNewPlan_TiesBreakByID(t *testing.T) {
	p, err := NewPlan(map[string]config.Timing{
		"c": {Latency: time.Microsecond},
		"a": {Latency: time.Microsecond},
		"b": {Latency: time.Microsecond},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, p.Order())
	require.Equal(t, "c", p.PollTarget())
}

func TestNewPlan_MarkerTiesGoToFirstStep(t *testing.T) {
	p, err := NewPlan(map[string]config.Timing{
		"slow": {Latency: 9 * time.Microsecond, Onset: 3 * time.Microsecond},
		"mid":  {Latency: 5 * time.Microsecond, Onset: 3 * time.Microsecond},
		"mid2": {Latency: 4 * time.Microsecond, Onset: time.Microsecond},
		"fast": {Latency: time.Microsecond},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"slow", "mid", "mid2", "fast"}, p.Order())
	require.Equal(t, 0, p.MarkerIndex)
	require.Equal(t, "slow", p.MarkerBefore())
	require.Equal(t, "marker slow(9µs) mid(5µs) mid2(4µs) fast(1µs)", p.String())
}

func TestNewPlan_RejectsMarkerAfterTriggers(t *testing.T) {
	_, err := NewPlan(map[string]config.Timing{
		"slow": {Latency: 9 * time.Microsecond, Onset: time.Microsecond},
		"mid":  {Latency: 5 * time.Microsecond, Onset: 3 * time.Microsecond},
		"fast": {Latency: time.Microsecond},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "mid has the greatest onset")
}

func TestNewPlan_RejectsEmpty(t *testing.T) {
	_, err := NewPlan(nil)
	require.Error(t, err)
}

func TestPlanHash_StableAndSensitive(t *testing.T) {
	a, err := NewPlan(config.Default().Subsystems)
	require.NoError(t, err)
	b, err := NewPlan(config.Default().Subsystems)
	require.NoError(t, err)
	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	require.Equal(t, ha, hb)
	require.Len(t, ha, 64)

	cfg := config.Default()
	cfg.Subsystems[regmap.BlockAES] = config.Timing{Latency: time.Second, Onset: time.Millisecond}
	c, err := NewPlan(cfg.Subsystems)
	require.NoError(t, err)
	hc, err := c.Hash()
	require.NoError(t, err)
	require.NotEqual(t, ha, hc)
}

type fixedClock struct{ now time.Duration }

func (c *fixedClock) Now() time.Duration { return c.now }

var _ mmio.Clock = (*fixedClock)(nil)

func TestPhaseMachine_FollowsLifecycle(t *testing.T) {
	rec := trace.NewRecorder()
	m := newPhaseMachine(&fixedClock{}, rec)
	steps := []Phase{PhaseStaging, PhaseReadyToTrigger, PhaseInEpoch, PhaseEpochComplete, PhaseVerifying, PhaseDone}
	from := PhaseIdle
	for _, to := range steps {
		if err := m.transition(from, to); err != nil {
			t.Fatalf("transition %s -> %s: %v", from, to, err)
		}
		from = to
	}
	require.True(t, m.current().IsTerminal())
	require.Len(t, rec.Snapshot(), len(steps))

	// Terminal phases stay put.
	require.Equal(t, PhaseDone, m.fail())
	require.Equal(t, PhaseDone, m.current())
	require.Error(t, m.transition(PhaseDone, PhaseFailed))
}

func TestPhaseMachine_RejectsSkips(t *testing.T) {
	m := newPhaseMachine(&fixedClock{}, nil)
	require.Error(t, m.transition(PhaseIdle, PhaseInEpoch))
	require.Error(t, m.transition(PhaseStaging, PhaseReadyToTrigger))
	require.NoError(t, m.transition(PhaseIdle, PhaseStaging))
	require.Equal(t, PhaseStaging, m.fail())
	require.Equal(t, []Phase{PhaseIdle, PhaseStaging, PhaseFailed}, m.visited())
}

func TestFailure_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("fifo full")
	f := stagingFailure(regmap.BlockI2C0, cause)
	require.Equal(t, "staging failure in Staging (i2c0): fifo full", f.Error())
	require.ErrorIs(t, f, ErrStagingFailure)
	require.ErrorIs(t, f, cause)
	require.NotErrorIs(t, f, ErrTimeoutFailure)

	m := mismatch(regmap.BlockAES, []byte{1}, []byte{2})
	require.Equal(t, "verification mismatch in Verifying (aes): expected 01, got 02", m.Error())

	got, ok := AsFailure(errors.Join(errors.New("wrapped"), m))
	require.True(t, ok)
	require.Equal(t, regmap.BlockAES, got.Subsystem)
}
