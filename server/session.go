package server

import (
	"time"

	"golang.org/x/time/rate"

	"dotarena/game"
)

// 每个连接的畸形帧告警频率：每秒 1 条，突发 5 条
const (
	malformedWarnEvery = time.Second
	malformedWarnBurst = 5
)

// session 一个已接入的连接：把上行帧转成命令投递给世界
type session struct {
	id   game.ConnID
	conn *ClientConn
	room *Room
	warn *rate.Limiter
}

func newSession(id game.ConnID, conn *ClientConn, room *Room) *session {
	return &session{
		id:   id,
		conn: conn,
		room: room,
		warn: rate.NewLimiter(rate.Every(malformedWarnEvery), malformedWarnBurst),
	}
}

// onFrame 畸形帧丢弃并计数，不影响连接；合法命令只入队，不改世界状态
func (s *session) onFrame(messageType int, payload []byte) {
	msg, err := decodeFrame(messageType, payload)
	if err != nil {
		s.room.metrics.IncMalformed()
		if s.warn.Allow() {
			s.room.log.Warnw("malformed frame dropped", "conn", s.id, "bytes", len(payload), "err", err)
		}
		return
	}
	s.room.metrics.IncAccepted()
	s.room.world.Enqueue(s.id, msg)
}

// close 读协程退出：世界在下一个 Tick 边界移除该连接的队伍
func (s *session) close() {
	s.room.conns.remove(s.id)
	s.room.world.Disconnect(s.id)
	s.room.log.Infow("connection closed", "conn", s.id)
}
