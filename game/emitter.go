package game

import (
	"fmt"

	"dotarena/spatial"
)

// EmitterKind 发射器变体标签
type EmitterKind uint8

const (
	// Producer 归属某队，每 tick 向绑定的 swarm 产出 Power 个点
	Producer EmitterKind = iota + 1
	// Neutral 无主资源点，持有可被攻占的 Life
	Neutral
)

func (k EmitterKind) String() string {
	switch k {
	case Producer:
		return "producer"
	case Neutral:
		return "neutral"
	}
	return fmt.Sprintf("EmitterKind(%d)", uint8(k))
}

// Emitter 两种发射器共用一个结构，Kind 决定哪些字段有效
type Emitter struct {
	ID    EmitterID
	Kind  EmitterKind
	X, Y  float64
	Power int

	// Producer
	Team TeamID
	Root bool

	// Neutral
	Life     int
	Duration int
	calm     int // 距上次被攻击的 tick 数

	node    *spatial.Item[EmitterID]
	removed bool
}

func (e *Emitter) Alive() bool { return !e.removed }

func (e *Emitter) Box() spatial.BBox {
	return spatial.Around(e.X, e.Y, MaxSwarmRadius)
}

// attack 扣除 Life 并重置倒计时，返回是否被攻破
func (e *Emitter) attack(power int) bool {
	e.Life -= power
	e.Duration = NeutralStartPeriod - power
	e.calm = 0
	return e.Life <= 0
}
