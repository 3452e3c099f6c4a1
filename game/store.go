package game

import (
	"fmt"
	"math"
	"slices"

	"github.com/kamstrup/intmap"
	"go.uber.org/zap"

	"dotarena/spatial"
	"dotarena/wire"
)

// Store 是 swarm 与发射器的唯一所有者。所有结构性变更都在同一调用里同步索引并记录下行增量，
// 其他地方只持有 id。
type Store struct {
	swarms   []*Swarm
	emitters []*Emitter

	swarmByID   *intmap.Map[SwarmID, *Swarm]
	emitterByID *intmap.Map[EmitterID, *Emitter]
	bound       *intmap.Map[EmitterID, SwarmID] // 发射器 → 绑定的 swarm

	swarmIndex   *spatial.Tree[SwarmID]
	emitterIndex *spatial.Tree[EmitterID]

	out    outbox
	nextID int32
	dirty  bool

	log    *zap.SugaredLogger
	strict bool
}

func NewStore(log *zap.SugaredLogger, strict bool) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{
		swarmByID:    intmap.New[SwarmID, *Swarm](1024),
		emitterByID:  intmap.New[EmitterID, *Emitter](1024),
		bound:        intmap.New[EmitterID, SwarmID](256),
		swarmIndex:   spatial.New[SwarmID](0),
		emitterIndex: spatial.New[EmitterID](0),
		log:          log,
		strict:       strict,
	}
}

func (s *Store) newID() int32 {
	s.nextID++
	return s.nextID
}

// violation 处理不变量违例：Strict 下 panic，否则记录并返回错误供调用方跳过该实体
func (s *Store) violation(format string, args ...any) error {
	err := fmt.Errorf("invariant violated: "+format, args...)
	if s.strict {
		panic(err)
	}
	s.log.Errorw("invariant violated, skipping entity", "err", err)
	return err
}

func (s *Store) Swarm(id SwarmID) (*Swarm, bool) {
	return s.swarmByID.Get(id)
}

func (s *Store) Emitter(id EmitterID) (*Emitter, bool) {
	return s.emitterByID.Get(id)
}

// BoundSwarm 返回生产者发射器绑定的 swarm
func (s *Store) BoundSwarm(e *Emitter) (*Swarm, bool) {
	id, ok := s.bound.Get(e.ID)
	if !ok {
		return nil, false
	}
	return s.swarmByID.Get(id)
}

// SwarmCount 存活 swarm 数
func (s *Store) SwarmCount() int { return s.swarmByID.Len() }

// EmitterCount 存活发射器数
func (s *Store) EmitterCount() int { return s.emitterByID.Len() }

// CreateSwarm 新建 swarm，先广播 new-swarm 再以增量写入初始点数
func (s *Store) CreateSwarm(x, y float64, count int, owner EmitterID, team TeamID) *Swarm {
	sw := &Swarm{ID: SwarmID(s.newID()), Team: team, X: x, Y: y, Owner: owner}
	sw.node = &spatial.Item[SwarmID]{Box: sw.Box(), Value: sw.ID}
	s.swarmIndex.Insert(sw.node)
	s.swarmByID.Put(sw.ID, sw)
	s.swarms = append(s.swarms, sw)
	if sw.Owned() {
		s.bound.Put(owner, sw.ID)
	}
	s.out.broadcast(wire.NewSwarm{
		SwarmID:  int32(sw.ID),
		X:        coord(x),
		Y:        coord(y),
		TeamID:   string(team),
		Owner:    int32(owner),
		HasOwner: sw.Owned(),
	})
	s.Augment(sw, count)
	return sw
}

// CreateProducer 新建归属 team 的生产者发射器
func (s *Store) CreateProducer(x, y float64, power int, team TeamID, root bool) *Emitter {
	e := &Emitter{ID: EmitterID(s.newID()), Kind: Producer, X: x, Y: y, Power: power, Team: team, Root: root}
	s.addEmitter(e, true)
	s.out.broadcast(wire.NewEmitter{
		X:         coord(x),
		Y:         coord(y),
		Power:     clampU8(power),
		EmitterID: int32(e.ID),
		TeamID:    string(team),
	})
	return e
}

// CreateNeutral 新建中立资源点
func (s *Store) CreateNeutral(x, y float64, power, duration int) *Emitter {
	e := s.neutral(x, y, power, duration)
	s.addEmitter(e, true)
	return e
}

// LoadNeutrals 初始化时批量创建中立资源点，索引一次性装载
func (s *Store) LoadNeutrals(specs []NeutralSpec) []*Emitter {
	created := make([]*Emitter, 0, len(specs))
	nodes := make([]*spatial.Item[EmitterID], 0, len(specs))
	for _, sp := range specs {
		e := s.neutral(sp.X, sp.Y, sp.Power, sp.Duration)
		s.addEmitter(e, false)
		created = append(created, e)
		nodes = append(nodes, e.node)
	}
	s.emitterIndex.Load(nodes)
	return created
}

// NeutralSpec 批量创建中立资源点的参数
type NeutralSpec struct {
	X, Y            float64
	Power, Duration int
}

func (s *Store) neutral(x, y float64, power, duration int) *Emitter {
	e := &Emitter{
		ID: EmitterID(s.newID()), Kind: Neutral, X: x, Y: y, Power: power,
		Life: NeutralStartLife, Duration: duration,
	}
	s.out.broadcast(wire.NewDeadEmitter{
		X:         coord(x),
		Y:         coord(y),
		Power:     clampU8(power),
		EmitterID: int32(e.ID),
		Duration:  clampU16(duration),
		Life:      clampU16(e.Life),
	})
	return e
}

func (s *Store) addEmitter(e *Emitter, index bool) {
	e.node = &spatial.Item[EmitterID]{Box: e.Box(), Value: e.ID}
	if index {
		s.emitterIndex.Insert(e.node)
	}
	s.emitterByID.Put(e.ID, e)
	s.emitters = append(s.emitters, e)
}

// Augment 对点数施加 delta，累计值截断在 [0, MaxDotsPerSwarm]，返回未能施加的余量。
// 每个非零的已施加增量都记录一条 augment-dot-count。
func (s *Store) Augment(sw *Swarm, delta int) (remainder int) {
	if delta == 0 {
		return 0
	}
	switch {
	case delta > 0 && sw.Count+delta > MaxDotsPerSwarm:
		applied := MaxDotsPerSwarm - sw.Count
		remainder, delta = delta-applied, applied
	case delta < 0 && sw.Count+delta < 0:
		applied := -sw.Count
		remainder, delta = delta-applied, applied
	}
	if delta == 0 {
		return remainder
	}
	sw.Count += delta
	// 超出 int16 的增量拆成多条，之和等于实际增量
	for rest := delta; rest != 0; {
		part := max(math.MinInt16, min(rest, math.MaxInt16))
		s.out.broadcast(wire.AugmentDotCount{SwarmID: int32(sw.ID), Delta: int16(part)})
		rest -= part
	}
	return remainder
}

// SetHeading 让 swarm 驶向 (x,y)
func (s *Store) SetHeading(sw *Swarm, x, y, speed float64) {
	sw.Move = newMovement(sw.X, sw.Y, x, y, speed)
	if sw.Move == nil {
		return
	}
	s.out.broadcast(wire.SetSwarmHeading{SwarmID: int32(sw.ID), X: coord(x), Y: coord(y)})
}

// Reindex 用 swarm 当前位置刷新其索引节点
func (s *Store) Reindex(sw *Swarm) error {
	if !s.swarmIndex.Update(sw.node, sw.Box()) {
		return s.violation("swarm %d missing from index", sw.ID)
	}
	return nil
}

// RemoveSwarm 删除 swarm；切片中的占位在 Compact 时回收
func (s *Store) RemoveSwarm(sw *Swarm) error {
	if sw.removed {
		return s.violation("swarm %d removed twice", sw.ID)
	}
	sw.removed = true
	s.dirty = true
	s.swarmByID.Del(sw.ID)
	if sw.Owned() {
		if id, ok := s.bound.Get(sw.Owner); ok && id == sw.ID {
			s.bound.Del(sw.Owner)
		}
	}
	s.out.broadcast(wire.RemoveSwarm{SwarmID: int32(sw.ID)})
	if !s.swarmIndex.Remove(sw.node) {
		return s.violation("swarm %d missing from index on remove", sw.ID)
	}
	return nil
}

// RemoveEmitter 删除发射器并广播 remove-emitter
func (s *Store) RemoveEmitter(e *Emitter) error {
	if err := s.dropEmitter(e); err != nil {
		return err
	}
	s.out.broadcast(wire.RemoveEmitter{EmitterID: int32(e.ID)})
	return nil
}

// ConvertToNeutral 生产者被击溃：广播 kill-emitter，并在原地以相同 power 生成中立资源点
func (s *Store) ConvertToNeutral(e *Emitter, duration int) (*Emitter, error) {
	if e.Kind != Producer {
		return nil, s.violation("emitter %d is %s, not a producer", e.ID, e.Kind)
	}
	if err := s.dropEmitter(e); err != nil {
		return nil, err
	}
	s.out.broadcast(wire.KillEmitter{EmitterID: int32(e.ID)})
	return s.CreateNeutral(e.X, e.Y, e.Power, duration), nil
}

func (s *Store) dropEmitter(e *Emitter) error {
	if e.removed {
		return s.violation("emitter %d removed twice", e.ID)
	}
	e.removed = true
	s.dirty = true
	s.emitterByID.Del(e.ID)
	s.bound.Del(e.ID)
	if !s.emitterIndex.Remove(e.node) {
		return s.violation("emitter %d missing from index on remove", e.ID)
	}
	return nil
}

// Compact 回收已删除实体在切片中的占位（遍历结束后调用）
func (s *Store) Compact() {
	if !s.dirty {
		return
	}
	s.swarms = slices.DeleteFunc(s.swarms, func(sw *Swarm) bool { return sw.removed })
	s.emitters = slices.DeleteFunc(s.emitters, func(e *Emitter) bool { return e.removed })
	s.dirty = false
}

// CheckIndex 比较索引与存储的实体数量
func (s *Store) CheckIndex() error {
	if n, m := s.swarmIndex.Len(), s.swarmByID.Len(); n != m {
		return fmt.Errorf("swarm index has %d nodes, store has %d swarms", n, m)
	}
	if n, m := s.emitterIndex.Len(), s.emitterByID.Len(); n != m {
		return fmt.Errorf("emitter index has %d nodes, store has %d emitters", n, m)
	}
	return nil
}

// searchSwarms 宽相位：返回包围盒与 box 相交的存活 swarm
func (s *Store) searchSwarms(box spatial.BBox) []*Swarm {
	items := s.swarmIndex.Search(box)
	out := make([]*Swarm, 0, len(items))
	for _, it := range items {
		sw, ok := s.swarmByID.Get(it.Value)
		if !ok {
			s.violation("indexed swarm %d not in store", it.Value)
			continue
		}
		out = append(out, sw)
	}
	return out
}

func (s *Store) searchEmitters(box spatial.BBox) []*Emitter {
	items := s.emitterIndex.Search(box)
	out := make([]*Emitter, 0, len(items))
	for _, it := range items {
		e, ok := s.emitterByID.Get(it.Value)
		if !ok {
			s.violation("indexed emitter %d not in store", it.Value)
			continue
		}
		out = append(out, e)
	}
	return out
}
