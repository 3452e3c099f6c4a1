package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeIntoLarger(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	big := w.CreateSwarm(1000, 1000, 60, NoEmitter, "a")
	small := w.CreateSwarm(1010, 1000, 20, NoEmitter, "a")

	w.tryMerge(small)
	assert.True(t, small.removed)
	assert.Equal(t, 80, big.Count)
	assert.Equal(t, 1, w.SwarmCount())
}

func TestMergeNeverAbsorbsOwned(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	e := w.CreateProducer(1000, 1000, 3, "a", true)
	bound := w.CreateSwarm(1000, 1000, 10, e.ID, "a")
	roving := w.CreateSwarm(1000, 1000, 500, NoEmitter, "a")

	w.tryMerge(roving)
	assert.True(t, roving.removed)
	assert.False(t, bound.removed)
	assert.Equal(t, 510, bound.Count)

	got, ok := w.BoundSwarm(e)
	require.True(t, ok)
	assert.Same(t, bound, got)
}

func TestMergeSkipsMovingAndOtherTeams(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	m := w.CreateSwarm(1000, 1000, 10, NoEmitter, "a")
	moving := w.CreateSwarm(1000, 1000, 10, NoEmitter, "a")
	w.SetHeading(moving, 2000, 1000, 50)
	enemy := w.CreateSwarm(1000, 1000, 10, NoEmitter, "b")

	w.tryMerge(m)
	assert.False(t, m.removed)
	assert.False(t, moving.removed)
	assert.False(t, enemy.removed)
	assert.Equal(t, 10, m.Count)
}

func TestMergeChains(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	a := w.CreateSwarm(1000, 1000, 10, NoEmitter, "a")
	b := w.CreateSwarm(1030, 1000, 30, NoEmitter, "a")
	c := w.CreateSwarm(1060, 1000, 20, NoEmitter, "a")

	w.tryMerge(a)
	// a 并入 b 后 b 变大，进而吞并 c
	assert.True(t, a.removed)
	assert.True(t, c.removed)
	assert.Equal(t, 60, b.Count)
}

func TestMergeOverflow(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	full := w.CreateSwarm(1000, 1000, MaxDotsPerSwarm-5, NoEmitter, "a")
	extra := w.CreateSwarm(1000, 1000, 20, NoEmitter, "a")

	w.tryMerge(extra)
	assert.Equal(t, MaxDotsPerSwarm, full.Count)
	assert.False(t, extra.removed)
	assert.Equal(t, 15, extra.Count)

	// 再次合并不产生任何变化
	before := w.out.len()
	w.tryMerge(extra)
	w.tryMerge(full)
	assert.Equal(t, before, w.out.len())
	assert.Equal(t, MaxDotsPerSwarm+15, full.Count+extra.Count)
}

func TestMergeIdempotent(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	var all []*Swarm
	for i := 0; i < 6; i++ {
		all = append(all, w.CreateSwarm(1000+float64(i)*15, 1000, 10+i, NoEmitter, "a"))
	}
	total := 0
	for _, sw := range all {
		total += sw.Count
	}

	for _, sw := range all {
		w.tryMerge(sw)
	}
	before := w.out.len()
	for _, sw := range all {
		w.tryMerge(sw)
	}
	assert.Equal(t, before, w.out.len())

	got := 0
	for _, sw := range all {
		if !sw.removed {
			got += sw.Count
		}
	}
	assert.Equal(t, total, got)
	assert.Less(t, w.SwarmCount(), len(all))
}
