package game

import (
	"math"

	"dotarena/wire"
)

// Transport 把整帧发给某个连接；由网络层实现
type Transport interface {
	Send(conn ConnID, frame []byte) error
}

type envelope struct {
	to  ConnID // 空表示广播
	msg wire.ServerMessage
}

// outbox 累积本 tick 的下行增量，tick 末尾按连接打包
type outbox struct {
	pending []envelope
}

func (o *outbox) broadcast(m wire.ServerMessage) {
	o.pending = append(o.pending, envelope{msg: m})
}

func (o *outbox) send(to ConnID, m wire.ServerMessage) {
	o.pending = append(o.pending, envelope{to: to, msg: m})
}

// forConn 按入队顺序返回发给 c 的全部消息（含广播）
func (o *outbox) forConn(c ConnID) []wire.ServerMessage {
	var msgs []wire.ServerMessage
	for _, e := range o.pending {
		if e.to == "" || e.to == c {
			msgs = append(msgs, e.msg)
		}
	}
	return msgs
}

func (o *outbox) reset() {
	clear(o.pending)
	o.pending = o.pending[:0]
}

func (o *outbox) len() int { return len(o.pending) }

func coord(v float64) int32 {
	return int32(math.Round(v))
}

func clampU8(v int) uint8 {
	return uint8(max(0, min(v, math.MaxUint8)))
}

func clampU16(v int) uint16 {
	return uint16(max(0, min(v, math.MaxUint16)))
}

func clampI16(v int) int16 {
	return int16(max(math.MinInt16, min(v, math.MaxInt16)))
}
