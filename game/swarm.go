package game

import (
	"math"
	"slices"

	"dotarena/spatial"
)

type (
	SwarmID   int32
	EmitterID int32
	TeamID    string
	ConnID    string
)

// NoEmitter 表示 swarm 不隶属任何发射器（游走状态）
const NoEmitter EmitterID = -1

// Movement 描述一次直线移动
type Movement struct {
	StartX, StartY   float64
	TargetX, TargetY float64
	DirX, DirY       float64
	Distance         float64
	Speed            float64
}

// Swarm 一群点，Count 是守恒量
type Swarm struct {
	ID    SwarmID
	Team  TeamID
	X, Y  float64
	Count int
	Owner EmitterID
	Move  *Movement

	battled []SwarmID
	node    *spatial.Item[SwarmID]
	removed bool
}

func (s *Swarm) Owned() bool { return s.Owner != NoEmitter }

func (s *Swarm) Alive() bool { return !s.removed }

func (s *Swarm) Radius() float64 {
	base := RovingBaseRadius
	if s.Owned() {
		base = EmitterRadius
	}
	return math.Min(base+float64(s.Count)/5, MaxSwarmRadius)
}

// BattledWith 本 tick 是否已与 other 交战
func (s *Swarm) BattledWith(other SwarmID) bool {
	return slices.Contains(s.battled, other)
}

func (s *Swarm) Battled() bool { return len(s.battled) > 0 }

// Box 索引中使用的包围盒：已提交位置 + 最大半径
func (s *Swarm) Box() spatial.BBox {
	return spatial.Around(s.X, s.Y, MaxSwarmRadius)
}

// Buckets 把 Count 切成最多 MaxRenderedDots 组，各组之和严格等于 Count
func (s *Swarm) Buckets() []int {
	return Buckets(s.Count, MaxRenderedDots)
}

func Buckets(count, maxGroups int) []int {
	if count <= 0 || maxGroups <= 0 {
		return nil
	}
	groups := min(count, maxGroups)
	per, extra := count/groups, count%groups
	out := make([]int, groups)
	for i := range out {
		out[i] = per
		if i < extra {
			out[i]++
		}
	}
	return out
}

func overlapCircles(ax, ay, ar, bx, by, br float64) bool {
	dx, dy := ax-bx, ay-by
	r := ar + br
	return dx*dx+dy*dy <= r*r
}

// newMovement 以 speed 从 (x,y) 驶向 (tx,ty)；原地目标返回 nil
func newMovement(x, y, tx, ty, speed float64) *Movement {
	dist := math.Hypot(tx-x, ty-y)
	if dist == 0 {
		return nil
	}
	return &Movement{
		StartX: x, StartY: y,
		TargetX: tx, TargetY: ty,
		DirX: (tx - x) / dist, DirY: (ty - y) / dist,
		Distance: dist,
		Speed:    speed,
	}
}

// step 推进 dt 秒，返回是否已抵达
func (s *Swarm) step(dt float64) bool {
	m := s.Move
	if m == nil {
		return false
	}
	s.X += m.DirX * m.Speed * dt
	s.Y += m.DirY * m.Speed * dt
	if math.Hypot(s.X-m.StartX, s.Y-m.StartY) >= m.Distance {
		s.X, s.Y = m.TargetX, m.TargetY
		s.Move = nil
		return true
	}
	return false
}
