package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"dotarena/game"
)

const (
	writeWait   = 5 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	sendBuffer  = 256
	maxFrameLen = 1 << 16
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	id game.ConnID
	ws *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClientConn(id game.ConnID, ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, sendBuffer),
	}
}

// Enqueue 将整帧压入发送队列（非阻塞）
func (c *ClientConn) Enqueue(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close 关闭发送队列，写协程随之退出并关闭底层连接；可重复调用
func (c *ClientConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发送 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端帧交给 session；退出时通知世界移除该连接
func (c *ClientConn) readPump(s *session) {
	defer s.close()
	defer c.ws.Close()
	c.ws.SetReadLimit(maxFrameLen)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { c.ws.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		mt, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.room.log.Debugw("read error", "conn", c.id, "err", err)
			}
			return
		}
		s.onFrame(mt, payload)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入；客户端需自行发送 join
func (r *Room) HandleWS(w http.ResponseWriter, req *http.Request) {
	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warnw("upgrade failed", "remote", req.RemoteAddr, "err", err)
		return
	}
	id := game.ConnID(uuid.NewString())
	client := NewClientConn(id, ws)
	r.conns.add(client)
	r.log.Infow("connection opened", "conn", id, "remote", req.RemoteAddr)

	go client.writePump()
	go client.readPump(newSession(id, client, r))
}
