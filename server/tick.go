package server

import (
	"context"
	"time"
)

// Run 启动房间的 Tick 循环（单线程推进世界），阻塞直到 ctx 结束。
// 配置中的 tick 间隔被热更新时，下一个周期起生效。
func (r *Room) Run(ctx context.Context) {
	interval := r.world.Config().TickInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	r.log.Infow("tick loop started", "interval", interval)

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			r.log.Infow("tick loop stopped", "tick", r.world.TickIndex())
			return
		case now := <-ticker.C:
			// 核心循环：命令 → 世界推进 → 下发增量，全部在 World.Tick 内完成
			elapsed := now.Sub(last)
			last = now
			start := time.Now()
			r.world.Tick(elapsed)
			r.metrics.AddTick(time.Since(start).Nanoseconds())

			if next := r.world.Config().TickInterval; next != interval {
				interval = next
				ticker.Reset(interval)
				r.log.Infow("tick interval changed", "interval", interval)
			}
		}
	}
}
