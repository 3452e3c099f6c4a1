package spatial

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomItems(rng *rand.Rand, n int, world, maxSize float64) []*Item[int] {
	items := make([]*Item[int], n)
	for i := range items {
		x, y := rng.Float64()*world, rng.Float64()*world
		w, h := rng.Float64()*maxSize, rng.Float64()*maxSize
		items[i] = &Item[int]{Box: BBox{MinX: x, MinY: y, MaxX: x + w, MaxY: y + h}, Value: i}
	}
	return items
}

func bruteForce(items []*Item[int], q BBox) []int {
	var ids []int
	for _, it := range items {
		if q.Intersects(it.Box) {
			ids = append(ids, it.Value)
		}
	}
	slices.Sort(ids)
	return ids
}

func values(items []*Item[int]) []int {
	var ids []int
	for _, it := range items {
		ids = append(ids, it.Value)
	}
	slices.Sort(ids)
	return ids
}

func TestSearchMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{0, 1, 5, 50, 1000, 3000} {
		items := randomItems(rng, n, 8000, 160)

		inserted := New[int](9)
		for _, it := range items {
			inserted.Insert(it)
		}
		loaded := New[int](9)
		loaded.Load(items)

		require.Equal(t, n, inserted.Len())
		require.Equal(t, n, loaded.Len())

		for q := 0; q < 200; q++ {
			x, y := rng.Float64()*8000, rng.Float64()*8000
			box := BBox{MinX: x, MinY: y, MaxX: x + rng.Float64()*1200, MaxY: y + rng.Float64()*1200}
			want := bruteForce(items, box)
			assert.Equal(t, want, values(inserted.Search(box)), "insert n=%d", n)
			assert.Equal(t, want, values(loaded.Search(box)), "load n=%d", n)
			assert.Equal(t, len(want) > 0, loaded.Collides(box))
		}
	}
}

func TestRemoveKeepsSearchConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	items := randomItems(rng, 800, 4000, 160)
	tree := New[int](0)
	tree.Load(items[:400])
	for _, it := range items[400:] {
		tree.Insert(it)
	}

	rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	removed, kept := items[:500], items[500:]
	for _, it := range removed {
		require.True(t, tree.Remove(it))
	}
	assert.False(t, tree.Remove(removed[0]), "double remove")
	assert.Equal(t, len(kept), tree.Len())
	assert.Equal(t, values(kept), values(tree.All()))

	for q := 0; q < 100; q++ {
		x, y := rng.Float64()*4000, rng.Float64()*4000
		box := Around(x, y, 300)
		assert.Equal(t, bruteForce(kept, box), values(tree.Search(box)))
	}

	for _, it := range kept {
		require.True(t, tree.Remove(it))
	}
	assert.Zero(t, tree.Len())
	assert.Empty(t, tree.Search(Around(0, 0, 1e9)))
}

func TestUpdateMovesItem(t *testing.T) {
	tree := New[int](4)
	items := make([]*Item[int], 20)
	for i := range items {
		items[i] = &Item[int]{Box: Around(float64(i*100), 0, 10), Value: i}
		tree.Insert(items[i])
	}
	require.True(t, tree.Update(items[3], Around(5000, 5000, 10)))

	assert.Empty(t, tree.Search(Around(300, 0, 1)))
	got := tree.Search(Around(5000, 5000, 1))
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Value)
	assert.Equal(t, 20, tree.Len())
}

func TestLoadIntoExistingTree(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	small := randomItems(rng, 30, 1000, 50)
	big := randomItems(rng, 600, 1000, 50)
	for i, it := range big {
		it.Value = 1000 + i
	}

	tree := New[int](9)
	tree.Load(small)
	tree.Load(big)

	all := append(slices.Clone(small), big...)
	assert.Equal(t, len(all), tree.Len())
	box := BBox{MinX: 200, MinY: 200, MaxX: 700, MaxY: 700}
	assert.Equal(t, bruteForce(all, box), values(tree.Search(box)))
}

func TestBBoxTouchingEdgesIntersect(t *testing.T) {
	a := BBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	b := BBox{MinX: 10, MinY: 10, MaxX: 20, MaxY: 20}
	assert.True(t, a.Intersects(b))
	assert.False(t, a.Contains(b))
	assert.True(t, Around(5, 5, 10).Contains(a))
}
