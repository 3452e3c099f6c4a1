package game

import "dotarena/wire"

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// combatPower 两队 swarm 交战时双方各自损失的点数
func combatPower(a, b int) int {
	return min(ceilDiv(max(a, b), combatDivisor), a, b)
}

// siegePower swarm 攻击中立资源点时的伤害
func siegePower(count, life int) int {
	return min(ceilDiv(count, combatDivisor), count, life)
}

// fight 宽相位查询附近实体，窄相位确认圆相交后结算。
// 每对 swarm 每 tick 至多交战一次；只有静止的 swarm 会攻击中立资源点。
func (w *World) fight(s *Swarm) {
	if s.Count <= 0 {
		return
	}
	sr := s.Radius()
	for _, o := range w.searchSwarms(s.Box()) {
		if o == s || o.removed || o.Team == s.Team || o.Count <= 0 {
			continue
		}
		if s.BattledWith(o.ID) || o.BattledWith(s.ID) {
			continue
		}
		if !overlapCircles(s.X, s.Y, sr, o.X, o.Y, o.Radius()) {
			continue
		}
		p := combatPower(s.Count, o.Count)
		w.Augment(s, -p)
		w.Augment(o, -p)
		s.battled = append(s.battled, o.ID)
		o.battled = append(o.battled, s.ID)
		if s.Count <= 0 {
			return
		}
		sr = s.Radius()
	}

	if s.Move != nil {
		return
	}
	for _, e := range w.searchEmitters(s.Box()) {
		if e.removed {
			continue
		}
		switch e.Kind {
		case Producer:
			continue
		case Neutral:
		default:
			w.violation("emitter %d has unknown kind %d", e.ID, e.Kind)
			continue
		}
		if !overlapCircles(s.X, s.Y, s.Radius(), e.X, e.Y, EmitterRadius) {
			continue
		}
		p := siegePower(s.Count, e.Life)
		if p <= 0 {
			continue
		}
		w.Augment(s, -p)
		captured := e.attack(p)
		w.out.broadcast(wire.SetDeadEmitterLife{EmitterID: int32(e.ID), Life: clampI16(e.Life)})
		w.out.broadcast(wire.SetDeadEmitterDuration{EmitterID: int32(e.ID), Duration: clampI16(e.Duration)})
		if captured {
			w.capture(s, e)
			return
		}
		if s.Count <= 0 {
			return
		}
	}
}

// capture 中立资源点被攻破：原地变为 s 所在队伍的生产者，s 剩余的点全部转入新的绑定 swarm
func (w *World) capture(s *Swarm, e *Emitter) {
	if err := w.RemoveEmitter(e); err != nil {
		return
	}
	p := w.CreateProducer(e.X, e.Y, e.Power, s.Team, false)
	n := s.Count
	bound := w.CreateSwarm(e.X, e.Y, n, p.ID, s.Team)
	w.Augment(s, -n)
	w.log.Debugw("neutral captured", "emitter", e.ID, "producer", p.ID, "team", s.Team, "dots", n)
	w.tryMerge(bound)
}
