package server

import (
	"errors"
	"fmt"
	"sync"

	"dotarena/game"
)

var (
	ErrUnknownConn   = errors.New("unknown connection")
	ErrSendQueueFull = errors.New("send queue full")
	ErrConnClosed    = errors.New("connection closed")
)

// ConnManager 管理当前在线的连接，作为世界的下行 Transport
type ConnManager struct {
	mu      sync.RWMutex
	conns   map[game.ConnID]*ClientConn
	metrics *RoomMetrics
}

func NewConnManager(metrics *RoomMetrics) *ConnManager {
	return &ConnManager{conns: make(map[game.ConnID]*ClientConn), metrics: metrics}
}

func (m *ConnManager) add(c *ClientConn) {
	m.mu.Lock()
	m.conns[c.id] = c
	m.mu.Unlock()
	m.metrics.ConnOpened()
}

func (m *ConnManager) remove(id game.ConnID) {
	m.mu.Lock()
	c, ok := m.conns[id]
	delete(m.conns, id)
	m.mu.Unlock()
	if ok {
		c.Close()
		m.metrics.ConnClosed()
	}
}

// Len 当前连接数
func (m *ConnManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Send 非阻塞投递一帧；队列满的连接会被关闭，由读协程走正常的断线流程
func (m *ConnManager) Send(id game.ConnID, frame []byte) error {
	m.mu.RLock()
	c, ok := m.conns[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("send to %s: %w", id, ErrUnknownConn)
	}
	err := c.Enqueue(frame)
	if errors.Is(err, ErrSendQueueFull) {
		m.metrics.IncSendQueueFull()
		c.Close()
	}
	if err != nil {
		return fmt.Errorf("send to %s: %w", id, err)
	}
	return nil
}

// CloseAll 关闭全部连接（进程退出时）
func (m *ConnManager) CloseAll() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[game.ConnID]*ClientConn)
	m.mu.Unlock()
	for _, c := range conns {
		c.Close()
		m.metrics.ConnClosed()
	}
}
