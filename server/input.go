package server

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"dotarena/wire"
)

var ErrTextFrame = errors.New("text frames are not accepted")

// decodeFrame 把一帧 WS 消息解码为上行命令（意图），由世界在下一个 Tick 中解释
func decodeFrame(messageType int, payload []byte) (wire.ClientMessage, error) {
	if messageType != websocket.BinaryMessage {
		return nil, ErrTextFrame
	}
	m, err := wire.DecodeClient(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %d-byte frame: %w", len(payload), err)
	}
	return m, nil
}
