package game

import (
	"math/rand"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"

	"dotarena/wire"
)

// Team 一个连接对应一支队伍
type Team struct {
	ID    TeamID
	Color string
	Conn  ConnID
}

func newTeam(conn ConnID, rng *rand.Rand) *Team {
	return &Team{
		ID:    TeamID(uuid.NewString()),
		Color: randomColor(rng),
		Conn:  conn,
	}
}

// randomColor 取饱和度、亮度适中的随机色，避免过暗或过灰
func randomColor(rng *rand.Rand) string {
	return colorful.Hsv(rng.Float64()*360, 0.55+rng.Float64()*0.35, 0.75+rng.Float64()*0.2).Hex()
}

func (w *World) teamData() []wire.TeamData {
	if len(w.teams) == 0 {
		return nil
	}
	out := make([]wire.TeamData, 0, len(w.teams))
	for _, t := range w.teams {
		out = append(out, wire.TeamData{TeamID: string(t.ID), Color: t.Color})
	}
	return out
}

func (w *World) sendTeams() {
	w.out.broadcast(wire.SetTeamData{Teams: w.teamData()})
}

func (w *World) removeTeam(t *Team) {
	delete(w.teamByConn, t.Conn)
	for i, x := range w.teams {
		if x == t {
			w.teams = append(w.teams[:i], w.teams[i+1:]...)
			break
		}
	}
}

// TeamByConn 返回连接对应的队伍
func (w *World) TeamByConn(c ConnID) (*Team, bool) {
	t, ok := w.teamByConn[c]
	return t, ok
}

// leave 连接断开：移除队伍及其全部实体，非根生产者原地还原为中立资源点
func (w *World) leave(c ConnID) {
	t, ok := w.teamByConn[c]
	if !ok {
		return
	}
	w.removeTeam(t)
	delete(w.since, c)
	for _, sw := range w.swarms {
		if sw.removed || sw.Team != t.ID {
			continue
		}
		w.RemoveSwarm(sw)
	}
	for _, e := range w.emitters {
		if e.removed || e.Kind != Producer || e.Team != t.ID {
			continue
		}
		if err := w.RemoveEmitter(e); err != nil {
			continue
		}
		if !e.Root {
			w.CreateNeutral(e.X, e.Y, e.Power, w.randomDuration())
		}
	}
	w.sendTeams()
	w.log.Infow("team left", "team", t.ID, "conn", c)
}
