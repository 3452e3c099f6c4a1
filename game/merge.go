package game

// tryMerge 同队静止且相交的 swarm 合并，直到没有可合并的对象为止。
// 绑定 swarm 永远不会被吸收；目标溢出的部分退回被吸收方。
func (w *World) tryMerge(m *Swarm) {
	for !m.removed && m.Move == nil {
		merged := false
		for _, o := range w.searchSwarms(m.Box()) {
			if o == m || o.removed || o.Team != m.Team || o.Move != nil {
				continue
			}
			if !overlapCircles(m.X, m.Y, m.Radius(), o.X, o.Y, o.Radius()) {
				continue
			}
			switch {
			case !m.Owned() && (o.Owned() || o.Count > m.Count):
				if w.absorb(o, m) {
					m = o
					merged = true
				}
			case !o.Owned():
				merged = w.absorb(m, o)
			default:
				continue
			}
			if merged {
				break
			}
		}
		if !merged {
			return
		}
	}
}

// absorb 把 from 的点并入 into；全部并入时删除 from 并返回 true，
// 溢出时 from 只保留剩余部分
func (w *World) absorb(into, from *Swarm) bool {
	n := from.Count
	rest := w.Augment(into, n)
	if rest > 0 {
		if moved := n - rest; moved > 0 {
			w.Augment(from, -moved)
		}
		return false
	}
	if err := w.RemoveSwarm(from); err != nil {
		return false
	}
	w.log.Debugw("swarms merged", "into", into.ID, "from", from.ID, "dots", n)
	return true
}
