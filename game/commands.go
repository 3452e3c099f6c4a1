package game

import (
	"math"

	"dotarena/wire"
)

// Command 一条来自某连接的上行命令
type Command struct {
	Conn ConnID
	Msg  wire.ClientMessage
}

func (w *World) apply(c Command) {
	switch m := c.Msg.(type) {
	case wire.Join:
		w.join(c.Conn)
	case wire.MoveDots:
		w.moveDots(c.Conn, m)
	case wire.Resync:
		w.sendGameData(c.Conn)
	default:
		w.log.Warnw("unhandled command", "conn", c.Conn, "type", c.Msg)
	}
}

// join 新队伍：在安全位置放置根生产者和绑定的初始 swarm
func (w *World) join(c ConnID) {
	if t, ok := w.teamByConn[c]; ok {
		w.log.Warnw("join ignored, connection already has a team", "conn", c, "team", t.ID)
		return
	}
	x, y := w.safePosition(w.emitterIndex)
	t := newTeam(c, w.rng)
	w.teams = append(w.teams, t)
	w.teamByConn[c] = t

	w.out.send(c, wire.Joined{TeamID: string(t.ID), StartX: coord(x), StartY: coord(y)})
	w.sendGameData(c)

	e := w.CreateProducer(x, y, RootEmitterPower, t.ID, true)
	sw := w.CreateSwarm(x, y, StartingDots, e.ID, t.ID)
	w.tryMerge(sw)
	w.sendTeams()
	w.log.Infow("team joined", "team", t.ID, "conn", c, "x", x, "y", y)
}

// moveDots 按百分比拆分或整体改向。percent=1 的游走 swarm 整体改向，
// 否则拆出 round(count×percent) 个点组成新 swarm 驶向目标
func (w *World) moveDots(c ConnID, m wire.MoveDots) {
	t, ok := w.teamByConn[c]
	if !ok {
		w.log.Debugw("move-dots from connection without team", "conn", c)
		return
	}
	x := math.Max(0, math.Min(float64(m.X), w.cfg.Size))
	y := math.Max(0, math.Min(float64(m.Y), w.cfg.Size))

	seen := make(map[SwarmID]bool, len(m.Swarms))
	for _, req := range m.Swarms {
		id := SwarmID(req.SwarmID)
		if seen[id] {
			continue
		}
		seen[id] = true
		if !(req.Percent > 0 && req.Percent <= 1) {
			w.log.Warnw("move-dots percent out of range", "conn", c, "swarm", id, "percent", req.Percent)
			continue
		}
		sw, ok := w.Swarm(id)
		if !ok || sw.Team != t.ID {
			continue
		}

		if req.Percent == 1 && !sw.Owned() {
			w.SetHeading(sw, x, y, w.cfg.SwarmSpeed)
			if sw.Move == nil {
				w.tryMerge(sw)
			}
			continue
		}

		n := int(math.Round(float64(sw.Count) * req.Percent))
		if n <= 0 {
			continue
		}
		split := w.CreateSwarm(sw.X, sw.Y, n, NoEmitter, sw.Team)
		w.SetHeading(split, x, y, w.cfg.SwarmSpeed)
		w.Augment(sw, -n)
		if split.Move == nil {
			w.tryMerge(split)
		}
	}
}

// sendGameData 向连接发送完整快照；此前入队的广播已包含在快照里，不再下发给它
func (w *World) sendGameData(c ConnID) {
	w.out.send(c, w.snapshot())
	w.since[c] = w.out.len()
}

func (w *World) snapshot() wire.GameData {
	gd := wire.GameData{
		Width:  uint32(w.cfg.Size),
		Height: uint32(w.cfg.Size),
		Teams:  w.teamData(),
	}
	for _, sw := range w.swarms {
		if sw.removed {
			continue
		}
		sd := wire.SwarmData{
			TeamID:   string(sw.Team),
			SwarmID:  int32(sw.ID),
			Count:    clampU16(sw.Count),
			X:        coord(sw.X),
			Y:        coord(sw.Y),
			Owner:    int32(sw.Owner),
			HasOwner: sw.Owned(),
		}
		if !sw.Owned() {
			sd.Owner = 0
		}
		if sw.Move != nil {
			sd.HeadingX, sd.HeadingY, sd.HasHeading = coord(sw.Move.TargetX), coord(sw.Move.TargetY), true
		}
		gd.Swarms = append(gd.Swarms, sd)
	}
	for _, e := range w.emitters {
		if e.removed {
			continue
		}
		ed := wire.EmitterData{EmitterID: int32(e.ID), X: coord(e.X), Y: coord(e.Y), Power: clampU8(e.Power)}
		switch e.Kind {
		case Producer:
			ed.Kind = wire.EmitterKindDot
			ed.TeamID = string(e.Team)
		case Neutral:
			ed.Kind = wire.EmitterKindDead
			ed.Life = clampU16(e.Life)
			ed.Duration = clampU16(e.Duration)
		default:
			w.violation("emitter %d has unknown kind %d", e.ID, e.Kind)
			continue
		}
		gd.Emitters = append(gd.Emitters, ed)
	}
	return gd
}
