package server

import (
	"net/http"

	"go.uber.org/zap"

	"dotarena/game"
)

// Room 房间：持有权威世界、在线连接与指标；世界状态只在 Tick 协程中改变
type Room struct {
	world   *game.World
	conns   *ConnManager
	metrics *RoomMetrics
	log     *zap.SugaredLogger
}

// NewRoom 创建并初始化世界（铺设中立资源点）
func NewRoom(cfg game.Config, log *zap.SugaredLogger) (*Room, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	metrics := &RoomMetrics{}
	conns := NewConnManager(metrics)
	w, err := game.NewWorld(cfg, conns, log.Named("world"))
	if err != nil {
		return nil, err
	}
	w.Init()
	return &Room{world: w, conns: conns, metrics: metrics, log: log}, nil
}

func (r *Room) World() *game.World { return r.world }

// Routes 注册 WebSocket 与管理接口
func (r *Room) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", r.HandleWS)
	mux.HandleFunc("/admin/config", r.HandleAdminConfig)
	mux.HandleFunc("/metrics", r.HandleMetrics)
	mux.HandleFunc("/debug/world", r.HandleDebugWorld)
}

// Close 断开所有连接
func (r *Room) Close() {
	r.conns.CloseAll()
}
