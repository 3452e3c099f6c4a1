package game

import (
	"context"
	"math"
	"math/rand"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dotarena/spatial"
	"dotarena/wire"
)

// World 单个权威世界。除 Enqueue/Disconnect/Tune/Inspect/Stats/Config 外，
// 所有方法只能在 Tick 所在的线程调用。
type World struct {
	*Store

	cfg        Config
	teams      []*Team
	teamByConn map[ConnID]*Team
	since      map[ConnID]int // 该连接本 tick 已收到快照时的 outbox 位置
	farewell   []*Team

	inbox     inbox
	transport Transport
	rng       *rand.Rand
	now       func() time.Time
	tick      int64
	log       *zap.SugaredLogger

	stats   atomic.Pointer[Stats]
	cfgView atomic.Pointer[Config]
}

// Stats 每个 tick 结束时发布的只读统计
type Stats struct {
	Tick         int64         `json:"tick"`
	Teams        int           `json:"teams"`
	Swarms       int           `json:"swarms"`
	Emitters     int           `json:"emitters"`
	Queued       int           `json:"queued"`
	Applied      int64         `json:"applied"`
	Deferred     int64         `json:"deferred"`
	SendFailures int64         `json:"sendFailures"`
	TickTime     time.Duration `json:"tickTime"`
}

func NewWorld(cfg Config, transport Transport, log *zap.SugaredLogger) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	w := &World{
		Store:      NewStore(log, cfg.Strict),
		cfg:        cfg,
		teamByConn: make(map[ConnID]*Team),
		since:      make(map[ConnID]int),
		transport:  transport,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		now:        time.Now,
		log:        log,
	}
	w.publishConfig()
	w.stats.Store(&Stats{})
	return w, nil
}

// Init 在地图上铺设中立资源点，索引一次性批量装载
func (w *World) Init() {
	planned := spatial.New[EmitterID](0)
	specs := make([]NeutralSpec, 0, w.cfg.NeutralCount)
	for i := 0; i < w.cfg.NeutralCount; i++ {
		x, y := w.safePosition(planned)
		planned.Insert(&spatial.Item[EmitterID]{Box: spatial.Around(x, y, MaxSwarmRadius)})
		specs = append(specs, NeutralSpec{X: x, Y: y, Power: NeutralPower, Duration: w.randomDuration()})
	}
	w.LoadNeutrals(specs)
	// 初始化产生的增量没有接收者
	w.out.reset()
	w.log.Infow("world initialised", "size", w.cfg.Size, "neutral", len(specs))
}

// Enqueue 网络层投递一条上行命令，只入队不改状态
func (w *World) Enqueue(c ConnID, m wire.ClientMessage) {
	w.inbox.push(Command{Conn: c, Msg: m})
}

// Disconnect 连接断开，下一个 tick 边界处理
func (w *World) Disconnect(c ConnID) {
	w.inbox.leave(c)
}

// Tune 校验并排队一次配置修改，下一个 tick 边界生效
func (w *World) Tune(fn func(*Config)) (Config, error) {
	next := *w.cfgView.Load()
	fn(&next)
	if err := next.Validate(); err != nil {
		return Config{}, err
	}
	w.inbox.tune(fn)
	return next, nil
}

// Config 最近一次生效的配置副本
func (w *World) Config() Config { return *w.cfgView.Load() }

// Stats 最近一次 tick 的统计副本
func (w *World) Stats() Stats { return *w.stats.Load() }

// Inspect 请求下一个 tick 结束时的世界视图
func (w *World) Inspect(ctx context.Context) (*View, error) {
	reply := make(chan *View, 1)
	w.inbox.inspect(reply)
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *World) publishConfig() {
	c := w.cfg
	w.cfgView.Store(&c)
}

// TickIndex 已完成的 tick 数
func (w *World) TickIndex() int64 { return w.tick }

// Tick 推进一个 tick，elapsed 是距上一个 tick 的实际耗时。顺序固定：
// 配置 → 命令（限时）→ 断线 → 发射器 → 被动损耗 → 清空交战记录 → swarm 移动与战斗 → 清理 → 下发 → 统计
func (w *World) Tick(elapsed time.Duration) {
	start := w.now()
	w.tick++

	batch := w.inbox.take()
	for _, fn := range batch.tunes {
		fn(&w.cfg)
	}
	if len(batch.tunes) > 0 {
		w.strict = w.cfg.Strict
		w.publishConfig()
		w.log.Infow("config updated", "tick", w.tick, "config", w.cfg)
	}
	applied, deferred := w.drain(start, batch.cmds)
	for _, c := range batch.leaves {
		if n := w.inbox.discard(c); n > 0 {
			w.log.Debugw("dropped commands of departed connection", "conn", c, "count", n)
		}
		w.leave(c)
	}

	w.tickEmitters()
	if w.tick%int64(w.cfg.DepleteEvery) == 0 {
		w.deplete()
	}
	for _, sw := range w.swarms {
		sw.battled = sw.battled[:0]
	}
	w.tickSwarms(elapsed.Seconds())
	w.cleanup()
	w.Compact()

	if w.strict {
		if err := w.CheckIndex(); err != nil {
			w.violation("%v", err)
		}
	}

	failures := w.flush()

	prev := w.stats.Load()
	took := w.now().Sub(start)
	w.stats.Store(&Stats{
		Tick:         w.tick,
		Teams:        len(w.teams),
		Swarms:       w.SwarmCount(),
		Emitters:     w.EmitterCount(),
		Queued:       w.Pending(),
		Applied:      prev.Applied + int64(applied),
		Deferred:     prev.Deferred + int64(deferred),
		SendFailures: prev.SendFailures + int64(failures),
		TickTime:     took,
	})
	w.log.Debugw("tick",
		"tick", w.tick,
		"teams", len(w.teams),
		"applied", applied,
		"deferred", deferred,
		"swarms", w.SwarmCount(),
		"emitters", w.EmitterCount(),
		"took", took,
	)

	for _, reply := range batch.inspects {
		reply <- w.view()
	}
}

// drain 在软时间预算内依次执行命令，超时部分原样放回队首
func (w *World) drain(start time.Time, cmds []Command) (applied, deferred int) {
	for i, c := range cmds {
		if i > 0 && w.now().Sub(start) > w.cfg.DrainBudget {
			rest := cmds[i:]
			w.inbox.requeue(rest)
			w.log.Warnw("command budget exhausted", "tick", w.tick, "applied", i, "deferred", len(rest))
			return i, len(rest)
		}
		w.apply(c)
	}
	return len(cmds), 0
}

func (w *World) tickEmitters() {
	n := len(w.emitters)
	for i := 0; i < n; i++ {
		e := w.emitters[i]
		if e.removed {
			continue
		}
		switch e.Kind {
		case Producer:
			w.produce(e)
		case Neutral:
			w.decay(e)
		default:
			w.violation("emitter %d has unknown kind %d", e.ID, e.Kind)
		}
	}
}

func (w *World) produce(e *Emitter) {
	sw, ok := w.BoundSwarm(e)
	if !ok {
		w.violation("producer %d has no bound swarm", e.ID)
		return
	}
	if amount := min(e.Power, w.cfg.ProductionCap-sw.Count); amount > 0 {
		w.Augment(sw, amount)
	}
}

// decay 中立资源点：安静足够久后回血，倒计时归零则换到新的安全位置
func (w *World) decay(e *Emitter) {
	e.calm++
	if e.calm >= w.cfg.RegenDelayTicks && e.Life < NeutralStartLife {
		e.Life++
		w.out.broadcast(wire.SetDeadEmitterLife{EmitterID: int32(e.ID), Life: clampI16(e.Life)})
	}
	e.Duration--
	if e.Duration > 0 {
		return
	}
	if err := w.RemoveEmitter(e); err != nil {
		return
	}
	x, y := w.safePosition(w.emitterIndex)
	w.CreateNeutral(x, y, e.Power, w.randomDuration())
}

// deplete 空闲的游走 swarm 按比例损耗
func (w *World) deplete() {
	for _, sw := range w.swarms {
		if sw.removed || sw.Owned() || sw.Battled() || sw.Count <= 0 {
			continue
		}
		if loss := int(math.Ceil(float64(sw.Count) * w.cfg.DepleteRatio)); loss > 0 {
			w.Augment(sw, -loss)
		}
	}
}

func (w *World) tickSwarms(dt float64) {
	// 捕获会追加新 swarm，按下标遍历使其在本 tick 内也参与
	for i := 0; i < len(w.swarms); i++ {
		sw := w.swarms[i]
		if sw.removed {
			continue
		}
		if sw.Move != nil {
			arrived := sw.step(dt)
			if err := w.Reindex(sw); err != nil {
				continue
			}
			if arrived {
				w.tryMerge(sw)
				if sw.removed {
					continue
				}
			}
		}
		w.fight(sw)
	}
}

// cleanup 移除点数耗尽的 swarm（其发射器还原为中立），再淘汰没有任何实体的队伍
func (w *World) cleanup() {
	for _, sw := range w.swarms {
		if sw.removed || sw.Count > 0 {
			continue
		}
		if !sw.Owned() {
			w.RemoveSwarm(sw)
			continue
		}
		e, ok := w.Emitter(sw.Owner)
		if err := w.RemoveSwarm(sw); err != nil {
			continue
		}
		if !ok {
			w.violation("swarm %d bound to missing emitter %d", sw.ID, sw.Owner)
			continue
		}
		w.ConvertToNeutral(e, w.randomDuration())
	}

	if len(w.teams) == 0 {
		return
	}
	alive := make(map[TeamID]bool, len(w.teams))
	for _, sw := range w.swarms {
		if !sw.removed {
			alive[sw.Team] = true
		}
	}
	for _, e := range w.emitters {
		if !e.removed && e.Kind == Producer {
			alive[e.Team] = true
		}
	}
	var dead []*Team
	for _, t := range w.teams {
		if !alive[t.ID] {
			dead = append(dead, t)
		}
	}
	for _, t := range dead {
		w.out.send(t.Conn, wire.Dead{})
		w.removeTeam(t)
		w.farewell = append(w.farewell, t)
		w.log.Infow("team eliminated", "team", t.ID, "conn", t.Conn, "tick", w.tick)
	}
	if len(dead) > 0 {
		w.sendTeams()
	}
}

// flush 按连接打包本 tick 的下行消息，超出单帧上限时按序拆帧；单个连接发送失败不影响其他连接
func (w *World) flush() (failures int) {
	defer func() {
		w.out.reset()
		w.farewell = w.farewell[:0]
		clear(w.since)
	}()
	if w.out.len() == 0 {
		return 0
	}

	var conns []ConnID
	seen := make(map[ConnID]bool)
	add := func(c ConnID) {
		if !seen[c] {
			seen[c] = true
			conns = append(conns, c)
		}
	}
	for _, t := range w.teams {
		add(t.Conn)
	}
	for _, t := range w.farewell {
		add(t.Conn)
	}
	for _, e := range w.out.pending {
		if e.to != "" {
			add(e.to)
		}
	}

	for _, c := range conns {
		_, member := w.teamByConn[c]
		msgs := w.outboundFor(c, member)
		if len(msgs) == 0 {
			continue
		}
		frames, err := wire.EncodeFrames(msgs)
		if err != nil {
			w.log.Errorw("encode batch failed", "conn", c, "err", err)
			failures++
			continue
		}
		if w.transport == nil {
			continue
		}
		for _, frame := range frames {
			if err := w.transport.Send(c, frame); err != nil {
				w.log.Warnw("send failed", "conn", c, "bytes", len(frame), "err", err)
				failures++
				break
			}
		}
	}
	return failures
}

// outboundFor 定向消息总是下发；广播只发给队伍成员（含本 tick 被淘汰的），
// 且跳过该连接收到快照之前入队的部分
func (w *World) outboundFor(c ConnID, member bool) []wire.ServerMessage {
	if !member {
		for _, t := range w.farewell {
			if t.Conn == c {
				member = true
				break
			}
		}
	}
	from := w.since[c]
	var msgs []wire.ServerMessage
	for i, e := range w.out.pending {
		switch {
		case e.to == c:
			msgs = append(msgs, e.msg)
		case e.to == "" && member && i >= from:
			msgs = append(msgs, e.msg)
		}
	}
	return msgs
}

func (w *World) randomDuration() int {
	return 1 + w.rng.Intn(NeutralStartPeriod)
}

func (w *World) randomPad(n float64) float64 {
	pad := n * EdgePadding
	return w.rng.Float64()*(n-pad*2) + pad
}

// safePosition 随机选一个间隙方框内没有任何发射器中心的位置；
// 尝试次数用尽时退回最后一个候选
func (w *World) safePosition(index *spatial.Tree[EmitterID]) (x, y float64) {
	for i := 0; i < w.cfg.SafeAttempts; i++ {
		x, y = math.Round(w.randomPad(w.cfg.Size)), math.Round(w.randomPad(w.cfg.Size))
		if isSafe(index, x, y, SafeClearance) {
			return x, y
		}
	}
	w.log.Warnw("no safe position found, using last candidate", "attempts", w.cfg.SafeAttempts, "x", x, "y", y)
	return x, y
}

func isSafe(index *spatial.Tree[EmitterID], x, y, clearance float64) bool {
	half := clearance / 2
	square := spatial.BBox{MinX: x - half, MinY: y - half, MaxX: x + half, MaxY: y + half}
	for _, it := range index.Search(square) {
		cx := (it.Box.MinX + it.Box.MaxX) / 2
		cy := (it.Box.MinY + it.Box.MaxY) / 2
		if cx > square.MinX && cx < square.MaxX && cy > square.MinY && cy < square.MaxY {
			return false
		}
	}
	return true
}

// inbox 网络线程与 Tick 线程之间唯一的共享结构
type inbox struct {
	mu       sync.Mutex
	cmds     []Command
	leaves   []ConnID
	tunes    []func(*Config)
	inspects []chan<- *View
}

type inboxBatch struct {
	cmds     []Command
	leaves   []ConnID
	tunes    []func(*Config)
	inspects []chan<- *View
}

func (in *inbox) push(c Command) {
	in.mu.Lock()
	in.cmds = append(in.cmds, c)
	in.mu.Unlock()
}

func (in *inbox) leave(c ConnID) {
	in.mu.Lock()
	in.leaves = append(in.leaves, c)
	in.mu.Unlock()
}

func (in *inbox) tune(fn func(*Config)) {
	in.mu.Lock()
	in.tunes = append(in.tunes, fn)
	in.mu.Unlock()
}

func (in *inbox) inspect(reply chan<- *View) {
	in.mu.Lock()
	in.inspects = append(in.inspects, reply)
	in.mu.Unlock()
}

func (in *inbox) take() inboxBatch {
	in.mu.Lock()
	defer in.mu.Unlock()
	b := inboxBatch{cmds: in.cmds, leaves: in.leaves, tunes: in.tunes, inspects: in.inspects}
	in.cmds, in.leaves, in.tunes, in.inspects = nil, nil, nil, nil
	return b
}

// requeue 把未处理的命令放回队首，保持原有顺序
func (in *inbox) requeue(rest []Command) {
	in.mu.Lock()
	defer in.mu.Unlock()
	merged := make([]Command, 0, len(rest)+len(in.cmds))
	merged = append(merged, rest...)
	in.cmds = append(merged, in.cmds...)
}

// discard 丢弃某连接仍在排队的命令，返回丢弃条数
func (in *inbox) discard(c ConnID) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := len(in.cmds)
	in.cmds = slices.DeleteFunc(in.cmds, func(cmd Command) bool { return cmd.Conn == c })
	return n - len(in.cmds)
}

// Pending 当前排队的命令数
func (w *World) Pending() int {
	w.inbox.mu.Lock()
	defer w.inbox.mu.Unlock()
	return len(w.inbox.cmds)
}
