// Package spatial 提供一棵用于宽相位查询的 R 树（R*-风格分裂 + OMT 批量装载）。
//
// 树只按包围盒筛选候选，调用方必须再做精确的窄相位判定。
// 条目的 Box 在入树期间不得修改：先 Remove，改 Box，再 Insert（或直接 Update）。
package spatial

import (
	"math"
	"slices"
)

const (
	defaultMaxEntries = 9
	minMaxEntries     = 4
)

// Item 树中的一个条目：包围盒 + 反向引用值
type Item[T any] struct {
	Box   BBox
	Value T
}

type node[T any] struct {
	box      BBox
	children []*node[T]
	item     *Item[T]
	leaf     bool
	height   int
}

func newNode[T any](children []*node[T]) *node[T] {
	return &node[T]{box: emptyBBox(), children: children, leaf: true, height: 1}
}

func entry[T any](it *Item[T]) *node[T] {
	return &node[T]{box: it.Box, item: it}
}

// Tree 动态 R 树，非并发安全
type Tree[T any] struct {
	root       *node[T]
	maxEntries int
	minEntries int
	size       int
}

// New 创建一棵节点容量为 maxEntries（<=0 取默认 9）的树
func New[T any](maxEntries int) *Tree[T] {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	maxEntries = max(minMaxEntries, maxEntries)
	t := &Tree[T]{
		maxEntries: maxEntries,
		minEntries: max(2, int(math.Ceil(float64(maxEntries)*0.4))),
	}
	t.Clear()
	return t
}

// Len 当前条目数
func (t *Tree[T]) Len() int { return t.size }

func (t *Tree[T]) Clear() {
	t.root = newNode[T](nil)
	t.size = 0
}

// Search 返回所有包围盒与 bbox 相交的条目
func (t *Tree[T]) Search(bbox BBox) []*Item[T] {
	var result []*Item[T]
	n := t.root
	if !bbox.Intersects(n.box) {
		return result
	}
	var stack []*node[T]
	for n != nil {
		for _, child := range n.children {
			if !bbox.Intersects(child.box) {
				continue
			}
			switch {
			case n.leaf:
				result = append(result, child.item)
			case bbox.Contains(child.box):
				result = collect(child, result)
			default:
				stack = append(stack, child)
			}
		}
		n = pop(&stack)
	}
	return result
}

// Collides 是否存在与 bbox 相交的条目
func (t *Tree[T]) Collides(bbox BBox) bool {
	n := t.root
	if !bbox.Intersects(n.box) {
		return false
	}
	var stack []*node[T]
	for n != nil {
		for _, child := range n.children {
			if !bbox.Intersects(child.box) {
				continue
			}
			if n.leaf || bbox.Contains(child.box) {
				return true
			}
			stack = append(stack, child)
		}
		n = pop(&stack)
	}
	return false
}

// All 返回全部条目
func (t *Tree[T]) All() []*Item[T] {
	return collect(t.root, nil)
}

func collect[T any](n *node[T], result []*Item[T]) []*Item[T] {
	stack := []*node[T]{n}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.leaf {
			for _, c := range n.children {
				result = append(result, c.item)
			}
			continue
		}
		stack = append(stack, n.children...)
	}
	return result
}

func pop[T any](stack *[]*node[T]) *node[T] {
	s := *stack
	if len(s) == 0 {
		return nil
	}
	n := s[len(s)-1]
	*stack = s[:len(s)-1]
	return n
}

// Insert 插入一个条目
func (t *Tree[T]) Insert(it *Item[T]) {
	if it == nil {
		return
	}
	t.insert(entry(it), t.root.height-1)
	t.size++
}

// Update 把条目移动到新包围盒（remove + insert 作为一步完成）
func (t *Tree[T]) Update(it *Item[T], box BBox) bool {
	if !t.Remove(it) {
		return false
	}
	it.Box = box
	t.Insert(it)
	return true
}

// Remove 按指针删除条目，未找到返回 false
func (t *Tree[T]) Remove(it *Item[T]) bool {
	if it == nil {
		return false
	}
	path := make([]*node[T], 0, t.root.height)
	if !t.remove(t.root, it, path) {
		return false
	}
	t.size--
	return true
}

func (t *Tree[T]) remove(n *node[T], it *Item[T], path []*node[T]) bool {
	path = append(path, n)
	if n.leaf {
		for i, c := range n.children {
			if c.item == it {
				n.children = slices.Delete(n.children, i, i+1)
				t.condense(path)
				return true
			}
		}
		return false
	}
	for _, c := range n.children {
		if c.box.Contains(it.Box) && t.remove(c, it, path) {
			return true
		}
	}
	return false
}

// Load 批量装载（OMT），用于初始化
func (t *Tree[T]) Load(items []*Item[T]) {
	if len(items) == 0 {
		return
	}
	if len(items) < t.minEntries {
		for _, it := range items {
			t.Insert(it)
		}
		return
	}
	entries := make([]*node[T], len(items))
	for i, it := range items {
		entries[i] = entry(it)
	}
	n := t.build(entries, 0, len(entries)-1, 0)
	t.size += len(items)

	switch {
	case len(t.root.children) == 0:
		t.root = n
	case t.root.height == n.height:
		t.splitRoot(t.root, n)
	default:
		if t.root.height < n.height {
			t.root, n = n, t.root
		}
		t.insert(n, t.root.height-n.height-1)
	}
}

func (t *Tree[T]) build(items []*node[T], left, right, height int) *node[T] {
	n := right - left + 1
	m := t.maxEntries
	if n <= m {
		leaf := newNode(slices.Clone(items[left : right+1]))
		calcBBox(leaf)
		return leaf
	}
	if height == 0 {
		height = int(math.Ceil(math.Log(float64(n)) / math.Log(float64(m))))
		m = int(math.Ceil(float64(n) / math.Pow(float64(m), float64(height-1))))
	}
	parent := newNode[T](nil)
	parent.leaf = false
	parent.height = height

	n2 := int(math.Ceil(float64(n) / float64(m)))
	n1 := n2 * int(math.Ceil(math.Sqrt(float64(m))))

	sortRange(items, left, right, compareMinX[T])
	for i := left; i <= right; i += n1 {
		right2 := min(i+n1-1, right)
		sortRange(items, i, right2, compareMinY[T])
		for j := i; j <= right2; j += n2 {
			right3 := min(j+n2-1, right2)
			parent.children = append(parent.children, t.build(items, j, right3, height-1))
		}
	}
	calcBBox(parent)
	return parent
}

func sortRange[T any](items []*node[T], left, right int, cmp func(a, b *node[T]) int) {
	slices.SortFunc(items[left:right+1], cmp)
}

func compareMinX[T any](a, b *node[T]) int {
	switch {
	case a.box.MinX < b.box.MinX:
		return -1
	case a.box.MinX > b.box.MinX:
		return 1
	}
	return 0
}

func compareMinY[T any](a, b *node[T]) int {
	switch {
	case a.box.MinY < b.box.MinY:
		return -1
	case a.box.MinY > b.box.MinY:
		return 1
	}
	return 0
}

// insert 把 n（条目或子树）放到 level 层
func (t *Tree[T]) insert(n *node[T], level int) {
	bbox := n.box
	path := make([]*node[T], 0, t.root.height)
	target, path := t.chooseSubtree(bbox, t.root, level, path)

	target.children = append(target.children, n)
	target.box = target.box.extend(bbox)

	for level >= 0 {
		if len(path[level].children) > t.maxEntries {
			t.split(path, level)
			level--
		} else {
			break
		}
	}
	for i := level; i >= 0; i-- {
		path[i].box = path[i].box.extend(bbox)
	}
}

func (t *Tree[T]) chooseSubtree(bbox BBox, n *node[T], level int, path []*node[T]) (*node[T], []*node[T]) {
	for {
		path = append(path, n)
		if n.leaf || len(path)-1 == level {
			return n, path
		}
		minArea, minEnlargement := math.Inf(1), math.Inf(1)
		var target *node[T]
		for _, child := range n.children {
			area := child.box.area()
			enlargement := bbox.enlargedArea(child.box) - area
			if enlargement < minEnlargement {
				minEnlargement = enlargement
				if area < minArea {
					minArea = area
				}
				target = child
			} else if enlargement == minEnlargement && area < minArea {
				minArea = area
				target = child
			}
		}
		if target == nil {
			target = n.children[0]
		}
		n = target
	}
}

func (t *Tree[T]) split(path []*node[T], level int) {
	n := path[level]
	total := len(n.children)
	m := t.minEntries

	t.chooseSplitAxis(n, m, total)
	at := t.chooseSplitIndex(n, m, total)

	sibling := newNode(slices.Clone(n.children[at:]))
	n.children = n.children[:at:at]
	sibling.height = n.height
	sibling.leaf = n.leaf

	calcBBox(n)
	calcBBox(sibling)

	if level > 0 {
		path[level-1].children = append(path[level-1].children, sibling)
	} else {
		t.splitRoot(n, sibling)
	}
}

func (t *Tree[T]) splitRoot(a, b *node[T]) {
	root := newNode([]*node[T]{a, b})
	root.height = a.height + 1
	root.leaf = false
	calcBBox(root)
	t.root = root
}

func (t *Tree[T]) chooseSplitIndex(n *node[T], m, total int) int {
	index := -1
	minOverlap, minArea := math.Inf(1), math.Inf(1)
	for i := m; i <= total-m; i++ {
		b1 := distBBox(n, 0, i)
		b2 := distBBox(n, i, total)
		overlap := b1.intersectionArea(b2)
		area := b1.area() + b2.area()
		if overlap < minOverlap {
			minOverlap = overlap
			index = i
			if area < minArea {
				minArea = area
			}
		} else if overlap == minOverlap && area < minArea {
			minArea = area
			index = i
		}
	}
	if index <= 0 {
		return total - m
	}
	return index
}

func (t *Tree[T]) chooseSplitAxis(n *node[T], m, total int) {
	xMargin := allDistMargin(n, m, total, compareMinX[T])
	yMargin := allDistMargin(n, m, total, compareMinY[T])
	if xMargin < yMargin {
		slices.SortFunc(n.children, compareMinX[T])
	}
}

func allDistMargin[T any](n *node[T], m, total int, cmp func(a, b *node[T]) int) float64 {
	slices.SortFunc(n.children, cmp)
	left := distBBox(n, 0, m)
	right := distBBox(n, total-m, total)
	margin := left.margin() + right.margin()
	for i := m; i < total-m; i++ {
		left = left.extend(n.children[i].box)
		margin += left.margin()
	}
	for i := total - m - 1; i >= m; i-- {
		right = right.extend(n.children[i].box)
		margin += right.margin()
	}
	return margin
}

func (t *Tree[T]) condense(path []*node[T]) {
	for i := len(path) - 1; i >= 0; i-- {
		if len(path[i].children) == 0 {
			if i > 0 {
				siblings := path[i-1].children
				if at := slices.Index(siblings, path[i]); at >= 0 {
					path[i-1].children = slices.Delete(siblings, at, at+1)
				}
			} else {
				t.root = newNode[T](nil)
			}
		} else {
			calcBBox(path[i])
		}
	}
}

func calcBBox[T any](n *node[T]) {
	n.box = distBBox(n, 0, len(n.children))
}

func distBBox[T any](n *node[T], k, p int) BBox {
	b := emptyBBox()
	for i := k; i < p; i++ {
		b = b.extend(n.children[i].box)
	}
	return b
}
