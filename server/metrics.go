package server

import (
	"sync/atomic"

	"dotarena/game"
)

// RoomMetrics 记录网络层与 Tick 循环的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount       int64 // 统计的 Tick 次数
	TotalTickNs     int64 // Tick 累计耗时（纳秒）
	FramesAccepted  int64 // 解码成功并入队的上行帧
	MalformedFrames int64 // 无法解码被丢弃的上行帧
	SendQueueFull   int64 // 因发送队列满被断开的连接数
	Connections     int64 // 当前连接数
	ConnsTotal      int64 // 累计接入的连接数
}

func (m *RoomMetrics) IncAccepted()      { atomic.AddInt64(&m.FramesAccepted, 1) }
func (m *RoomMetrics) IncMalformed()     { atomic.AddInt64(&m.MalformedFrames, 1) }
func (m *RoomMetrics) IncSendQueueFull() { atomic.AddInt64(&m.SendQueueFull, 1) }
func (m *RoomMetrics) ConnOpened() {
	atomic.AddInt64(&m.Connections, 1)
	atomic.AddInt64(&m.ConnsTotal, 1)
}
func (m *RoomMetrics) ConnClosed() { atomic.AddInt64(&m.Connections, -1) }
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，合并世界最近一次 tick 的统计，便于 HTTP 输出
func (m *RoomMetrics) Snapshot(st game.Stats) map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":        tick,
		"avg_tick_ms":       avgMs,
		"frames_accepted":   atomic.LoadInt64(&m.FramesAccepted),
		"malformed_frames":  atomic.LoadInt64(&m.MalformedFrames),
		"send_queue_full":   atomic.LoadInt64(&m.SendQueueFull),
		"connections":       atomic.LoadInt64(&m.Connections),
		"connections_total": atomic.LoadInt64(&m.ConnsTotal),
		"world_tick":        st.Tick,
		"teams":             st.Teams,
		"swarms":            st.Swarms,
		"emitters":          st.Emitters,
		"queued_commands":   st.Queued,
		"commands_applied":  st.Applied,
		"commands_deferred": st.Deferred,
		"send_failures":     st.SendFailures,
		"last_tick_ms":      float64(st.TickTime.Nanoseconds()) / 1e6,
	}
}
