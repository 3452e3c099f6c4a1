package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dotarena/wire"
)

func TestCombatPower(t *testing.T) {
	tests := []struct {
		a, b, want int
	}{
		{100, 50, 12},
		{50, 100, 12},
		{9, 9, 1},
		{1, 1000, 1},
		{0, 10, 0},
		{45000, 45000, 5000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, combatPower(tt.a, tt.b), "%d vs %d", tt.a, tt.b)
	}
	assert.Equal(t, 10, siegePower(90, 100))
	assert.Equal(t, 3, siegePower(90, 3))
	assert.Equal(t, 1, siegePower(1, 100))
}

func TestSwarmsFight(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	a := w.CreateSwarm(1000, 1000, 100, NoEmitter, "one")
	b := w.CreateSwarm(1010, 1000, 50, NoEmitter, "two")

	w.fight(a)
	assert.Equal(t, 88, a.Count)
	assert.Equal(t, 38, b.Count)
	assert.True(t, a.BattledWith(b.ID))
	assert.True(t, b.BattledWith(a.ID))

	// 同一 tick 内同一对只交战一次
	w.fight(b)
	w.fight(a)
	assert.Equal(t, 88, a.Count)
	assert.Equal(t, 38, b.Count)
}

func TestSameTeamDoesNotFight(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	a := w.CreateSwarm(1000, 1000, 100, NoEmitter, "one")
	b := w.CreateSwarm(1000, 1000, 50, NoEmitter, "one")
	w.fight(a)
	assert.Equal(t, 100, a.Count)
	assert.Equal(t, 50, b.Count)
}

func TestDistantSwarmsDoNotFight(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	a := w.CreateSwarm(1000, 1000, 10, NoEmitter, "one")
	// 包围盒相交但圆不相交
	b := w.CreateSwarm(1100, 1000, 10, NoEmitter, "two")
	require.True(t, a.Box().Intersects(b.Box()))
	w.fight(a)
	assert.Equal(t, 10, a.Count)
	assert.Equal(t, 10, b.Count)
}

func TestEqualSwarmsFightToZero(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	a := w.CreateSwarm(1000, 1000, 40, NoEmitter, "one")
	b := w.CreateSwarm(1000, 1000, 40, NoEmitter, "two")

	for i := 0; i < 100 && (a.Count > 0 || b.Count > 0); i++ {
		a.battled, b.battled = a.battled[:0], b.battled[:0]
		w.fight(a)
		require.GreaterOrEqual(t, a.Count, 0)
		require.GreaterOrEqual(t, b.Count, 0)
		require.Equal(t, a.Count, b.Count)
	}
	assert.Zero(t, a.Count)
	assert.Zero(t, b.Count)

	w.cleanup()
	assert.True(t, a.removed)
	assert.True(t, b.removed)
	w.Compact()
	require.NoError(t, w.CheckIndex())
}

func TestTickFightsEachPairOnce(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	a := w.CreateSwarm(1000, 1000, 100, NoEmitter, "one")
	b := w.CreateSwarm(1000, 1000, 50, NoEmitter, "two")
	c := w.CreateSwarm(1000, 1000, 50, NoEmitter, "three")

	w.tickSwarms(0.2)
	for _, sw := range []*Swarm{a, b, c} {
		assert.Len(t, sw.battled, 2)
	}
	// a 先后与 b、c 交战：12 然后 min(ceil(88/9), 50) = 10；b、c 之间再打一次 5
	assert.Equal(t, 78, a.Count)
	assert.Equal(t, 68, b.Count+c.Count)
}

func TestSwarmAttacksNeutral(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	n := w.CreateNeutral(1000, 1000, NeutralPower, 500)
	sw := w.CreateSwarm(1000, 1000, 90, NoEmitter, "one")
	w.out.reset()

	w.fight(sw)
	assert.Equal(t, 90, n.Life)
	assert.Equal(t, NeutralStartPeriod-10, n.Duration)
	assert.Equal(t, 80, sw.Count)

	msgs := w.out.forConn("x")
	assert.Contains(t, msgs, wire.SetDeadEmitterLife{EmitterID: int32(n.ID), Life: 90})
	assert.Contains(t, msgs, wire.SetDeadEmitterDuration{EmitterID: int32(n.ID), Duration: 990})
}

func TestMovingSwarmIgnoresNeutral(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	n := w.CreateNeutral(1000, 1000, NeutralPower, 500)
	sw := w.CreateSwarm(1000, 1000, 90, NoEmitter, "one")
	w.SetHeading(sw, 3000, 1000, 50)

	w.fight(sw)
	assert.Equal(t, NeutralStartLife, n.Life)
	assert.Equal(t, 90, sw.Count)
}

func TestCaptureNeutral(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	n := w.CreateNeutral(1000, 1000, NeutralPower, 500)
	n.Life = 1
	sw := w.CreateSwarm(1010, 1000, 9, NoEmitter, "one")

	w.fight(sw)
	assert.True(t, n.removed)
	assert.True(t, sw.removed)

	w.Compact()
	require.Equal(t, 1, w.EmitterCount())
	p := w.emitters[0]
	assert.Equal(t, Producer, p.Kind)
	assert.Equal(t, TeamID("one"), p.Team)
	assert.False(t, p.Root)
	assert.Equal(t, NeutralPower, p.Power)
	assert.Equal(t, n.X, p.X)

	bound, ok := w.BoundSwarm(p)
	require.True(t, ok)
	assert.Equal(t, 8, bound.Count)
	assert.Equal(t, 1, w.SwarmCount())
	require.NoError(t, w.CheckIndex())
}

func TestProducerDiesWithItsSwarm(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	e := w.CreateProducer(1000, 1000, 3, "one", false)
	bound := w.CreateSwarm(1000, 1000, 5, e.ID, "one")
	attacker := w.CreateSwarm(1000, 1000, 500, NoEmitter, "two")

	w.fight(attacker)
	assert.Zero(t, bound.Count)
	w.cleanup()
	w.Compact()

	assert.True(t, e.removed)
	require.Equal(t, 1, w.EmitterCount())
	assert.Equal(t, Neutral, w.emitters[0].Kind)
	assert.Equal(t, e.X, w.emitters[0].X)
	require.NoError(t, w.CheckIndex())
}
