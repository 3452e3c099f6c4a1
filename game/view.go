package game

import (
	"slices"
)

const viewTopSwarms = 20

// View 调试用的世界快照，由 Tick 线程构造后交给请求方
type View struct {
	Stats  Stats       `json:"stats"`
	Config Config      `json:"config"`
	Teams  []TeamView  `json:"teams"`
	Top    []SwarmView `json:"topSwarms"`
}

type TeamView struct {
	ID        TeamID `json:"id"`
	Color     string `json:"color"`
	Conn      ConnID `json:"conn"`
	Swarms    int    `json:"swarms"`
	Producers int    `json:"producers"`
	Dots      int    `json:"dots"`
}

type SwarmView struct {
	ID      SwarmID `json:"id"`
	Team    TeamID  `json:"team"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Count   int     `json:"count"`
	Owner   int32   `json:"owner"`
	Moving  bool    `json:"moving"`
	Buckets []int   `json:"buckets"`
}

func (w *World) view() *View {
	v := &View{Stats: *w.stats.Load(), Config: w.cfg}
	byTeam := make(map[TeamID]*TeamView, len(w.teams))
	for _, t := range w.teams {
		v.Teams = append(v.Teams, TeamView{ID: t.ID, Color: t.Color, Conn: t.Conn})
	}
	for i := range v.Teams {
		byTeam[v.Teams[i].ID] = &v.Teams[i]
	}

	var live []*Swarm
	for _, sw := range w.swarms {
		if sw.removed {
			continue
		}
		live = append(live, sw)
		if tv, ok := byTeam[sw.Team]; ok {
			tv.Swarms++
			tv.Dots += sw.Count
		}
	}
	for _, e := range w.emitters {
		if e.removed || e.Kind != Producer {
			continue
		}
		if tv, ok := byTeam[e.Team]; ok {
			tv.Producers++
		}
	}

	slices.SortFunc(live, func(a, b *Swarm) int { return b.Count - a.Count })
	for _, sw := range live[:min(len(live), viewTopSwarms)] {
		v.Top = append(v.Top, SwarmView{
			ID:      sw.ID,
			Team:    sw.Team,
			X:       sw.X,
			Y:       sw.Y,
			Count:   sw.Count,
			Owner:   int32(sw.Owner),
			Moving:  sw.Move != nil,
			Buckets: sw.Buckets(),
		})
	}
	return v
}
