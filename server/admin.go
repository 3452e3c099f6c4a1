package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"dotarena/game"
)

const inspectTimeout = 2 * time.Second

// configPatch 可热更新的字段；省略的字段保持不变。
// 地图尺寸、中立资源点数量与随机种子只在启动时生效
type configPatch struct {
	TickIntervalMs  *int     `json:"tickIntervalMs,omitempty"`
	DrainBudgetMs   *int     `json:"drainBudgetMs,omitempty"`
	SwarmSpeed      *float64 `json:"swarmSpeed,omitempty"`
	DepleteEvery    *int     `json:"depleteEvery,omitempty"`
	DepleteRatio    *float64 `json:"depleteRatio,omitempty"`
	RegenDelayTicks *int     `json:"regenDelayTicks,omitempty"`
	ProductionCap   *int     `json:"productionCap,omitempty"`
	Strict          *bool    `json:"strict,omitempty"`
}

func (p configPatch) apply(c *game.Config) {
	if p.TickIntervalMs != nil {
		c.TickInterval = time.Duration(*p.TickIntervalMs) * time.Millisecond
	}
	if p.DrainBudgetMs != nil {
		c.DrainBudget = time.Duration(*p.DrainBudgetMs) * time.Millisecond
	}
	if p.SwarmSpeed != nil {
		c.SwarmSpeed = *p.SwarmSpeed
	}
	if p.DepleteEvery != nil {
		c.DepleteEvery = *p.DepleteEvery
	}
	if p.DepleteRatio != nil {
		c.DepleteRatio = *p.DepleteRatio
	}
	if p.RegenDelayTicks != nil {
		c.RegenDelayTicks = *p.RegenDelayTicks
	}
	if p.ProductionCap != nil {
		c.ProductionCap = *p.ProductionCap
	}
	if p.Strict != nil {
		c.Strict = *p.Strict
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleAdminConfig 提供世界配置的读取与更新（热更新）
// GET /admin/config  返回当前生效的配置
// POST /admin/config 以 JSON 载荷更新部分字段，下一个 Tick 边界生效
func (r *Room) HandleAdminConfig(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, r.world.Config())
	case http.MethodPost:
		var body configPatch
		dec := json.NewDecoder(req.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
		next, err := r.world.Tune(body.apply)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		r.log.Infow("config update queued", "config", next)
		writeJSON(w, http.StatusAccepted, next)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出运行指标
// GET /metrics
func (r *Room) HandleMetrics(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.metrics.Snapshot(r.world.Stats()))
}

// HandleDebugWorld 在下一个 Tick 结束时取世界视图
// GET /debug/world
func (r *Room) HandleDebugWorld(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), inspectTimeout)
	defer cancel()
	v, err := r.world.Inspect(ctx)
	if err != nil {
		http.Error(w, "world did not answer: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
