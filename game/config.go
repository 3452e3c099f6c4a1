package game

import (
	"errors"
	"fmt"
	"time"
)

// 固定的几何与容量常量
const (
	EmitterRadius      = 30.0
	MaxSwarmRadius     = 80.0 // 同时是索引包围盒的外扩量
	RovingBaseRadius   = 20.0
	MaxDotsPerSwarm    = 50000
	MaxRenderedDots    = 50
	NeutralStartLife   = 100
	NeutralStartPeriod = 1000 // 中立发射器的初始 duration 上限
	RootEmitterPower   = 3
	NeutralPower       = 2
	StartingDots       = 110
	SafeClearance      = 300.0
	EdgePadding        = 0.05
	combatDivisor      = 9
)

// Config 世界的可调参数；热更新时由 Tick 线程整体替换
type Config struct {
	TickInterval    time.Duration `json:"tickInterval"`
	DrainBudget     time.Duration `json:"drainBudget"`
	Size            float64       `json:"size"`
	NeutralCount    int           `json:"neutralCount"`
	SwarmSpeed      float64       `json:"swarmSpeed"`
	DepleteEvery    int           `json:"depleteEvery"`
	DepleteRatio    float64       `json:"depleteRatio"`
	RegenDelayTicks int           `json:"regenDelayTicks"`
	ProductionCap   int           `json:"productionCap"`
	SafeAttempts    int           `json:"safeAttempts"`
	Seed            int64         `json:"seed"`
	// Strict 下不变量违例直接 panic，并在每个 tick 末尾核对索引与存储
	Strict bool `json:"strict"`
}

func DefaultConfig() Config {
	return Config{
		TickInterval:    200 * time.Millisecond,
		DrainBudget:     100 * time.Millisecond,
		Size:            8000,
		NeutralCount:    500,
		SwarmSpeed:      50,
		DepleteEvery:    5,
		DepleteRatio:    0.007,
		RegenDelayTicks: 5,
		ProductionCap:   MaxDotsPerSwarm,
		SafeAttempts:    1000,
		Seed:            time.Now().UnixNano(),
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tickInterval must be > 0, got %s", c.TickInterval))
	}
	if c.DrainBudget <= 0 {
		errs = append(errs, fmt.Errorf("drainBudget must be > 0, got %s", c.DrainBudget))
	}
	if c.Size <= 0 || c.Size > 1<<30 {
		errs = append(errs, fmt.Errorf("size out of range: %v", c.Size))
	}
	if c.NeutralCount < 0 {
		errs = append(errs, fmt.Errorf("neutralCount must be >= 0, got %d", c.NeutralCount))
	}
	if c.SwarmSpeed <= 0 {
		errs = append(errs, fmt.Errorf("swarmSpeed must be > 0, got %v", c.SwarmSpeed))
	}
	if c.DepleteEvery <= 0 {
		errs = append(errs, fmt.Errorf("depleteEvery must be > 0, got %d", c.DepleteEvery))
	}
	if c.DepleteRatio < 0 || c.DepleteRatio > 1 {
		errs = append(errs, fmt.Errorf("depleteRatio must be in [0,1], got %v", c.DepleteRatio))
	}
	if c.RegenDelayTicks < 0 {
		errs = append(errs, fmt.Errorf("regenDelayTicks must be >= 0, got %d", c.RegenDelayTicks))
	}
	if c.ProductionCap <= 0 || c.ProductionCap > MaxDotsPerSwarm {
		errs = append(errs, fmt.Errorf("productionCap must be in (0,%d], got %d", MaxDotsPerSwarm, c.ProductionCap))
	}
	if c.SafeAttempts <= 0 {
		errs = append(errs, fmt.Errorf("safeAttempts must be > 0, got %d", c.SafeAttempts))
	}
	return errors.Join(errs...)
}
