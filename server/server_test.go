package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dotarena/game"
	"dotarena/wire"
)

func testRoom(t *testing.T) (*Room, *httptest.Server) {
	t.Helper()
	cfg := game.DefaultConfig()
	cfg.TickInterval = 10 * time.Millisecond
	cfg.NeutralCount = 20
	cfg.Seed = 7
	cfg.Strict = true
	room, err := NewRoom(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		room.Run(ctx)
		close(done)
	}()

	mux := http.NewServeMux()
	room.Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		room.Close()
		cancel()
		<-done
	})
	return room, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendMsg(t *testing.T, ws *websocket.Conn, m wire.ClientMessage) {
	t.Helper()
	b, err := wire.EncodeClient(m)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, b))
}

// readUntil 逐帧读取下行消息，直到某一帧中有消息满足 match；
// 返回至今读到的全部消息，包含匹配帧的剩余部分
func readUntil(t *testing.T, ws *websocket.Conn, match func(wire.ServerMessage) bool) []wire.ServerMessage {
	t.Helper()
	var seen []wire.ServerMessage
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		mt, frame, err := ws.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.BinaryMessage, mt)
		msgs, err := wire.DecodeBatch(frame)
		require.NoError(t, err)
		seen = append(seen, msgs...)
		for _, m := range msgs {
			if match(m) {
				return seen
			}
		}
	}
}

func isType[T wire.ServerMessage](m wire.ServerMessage) bool {
	_, ok := m.(T)
	return ok
}

// first 返回 msgs 中第一条 T 类型的消息
func first[T wire.ServerMessage](t *testing.T, msgs []wire.ServerMessage) T {
	t.Helper()
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v
		}
	}
	var zero T
	require.Failf(t, "message not found", "no %T in %d messages", zero, len(msgs))
	return zero
}

func TestJoinOverWebSocket(t *testing.T) {
	_, srv := testRoom(t)
	ws := dial(t, srv)

	// 畸形帧被丢弃，连接保持
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte{0xee}))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"join"}`)))
	sendMsg(t, ws, wire.Join{})

	msgs := readUntil(t, ws, isType[wire.GameData])
	require.GreaterOrEqual(t, len(msgs), 2)
	joined, ok := msgs[0].(wire.Joined)
	require.True(t, ok)
	assert.NotEmpty(t, joined.TeamID)

	gd, ok := msgs[1].(wire.GameData)
	require.True(t, ok)
	assert.Equal(t, uint32(8000), gd.Width)
	assert.Len(t, gd.Emitters, 20)

	// 根生产者与初始 swarm 的增量与快照在同一帧内下发
	var owned []wire.NewSwarm
	for _, m := range msgs[2:] {
		if ns, ok := m.(wire.NewSwarm); ok && ns.TeamID == joined.TeamID && ns.HasOwner {
			owned = append(owned, ns)
		}
	}
	require.Len(t, owned, 1)
	e := first[wire.NewEmitter](t, msgs)
	assert.Equal(t, e.EmitterID, owned[0].Owner)
	assert.Equal(t, joined.TeamID, e.TeamID)
}

func TestTwoClientsSeeEachOther(t *testing.T) {
	_, srv := testRoom(t)
	a := dial(t, srv)
	sendMsg(t, a, wire.Join{})
	aTeam := first[wire.Joined](t, readUntil(t, a, isType[wire.Joined])).TeamID

	b := dial(t, srv)
	sendMsg(t, b, wire.Join{})
	bTeam := first[wire.Joined](t, readUntil(t, b, isType[wire.Joined])).TeamID
	require.NotEqual(t, aTeam, bTeam)

	readUntil(t, a, func(m wire.ServerMessage) bool {
		e, ok := m.(wire.NewEmitter)
		return ok && e.TeamID == bTeam
	})

	// b 断开后 a 收到只剩一支队伍的 set-team-data
	require.NoError(t, b.Close())
	readUntil(t, a, func(m wire.ServerMessage) bool {
		td, ok := m.(wire.SetTeamData)
		return ok && len(td.Teams) == 1 && td.Teams[0].TeamID == aTeam
	})
}

func TestMetricsEndpoint(t *testing.T) {
	room, srv := testRoom(t)
	ws := dial(t, srv)
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte{0xee}))
	sendMsg(t, ws, wire.Join{})
	readUntil(t, ws, isType[wire.Joined])

	rec := httptest.NewRecorder()
	room.HandleMetrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["malformed_frames"])
	assert.EqualValues(t, 1, body["frames_accepted"])
	assert.EqualValues(t, 1, body["connections"])
	assert.Positive(t, body["tick_count"])
}

func TestAdminConfig(t *testing.T) {
	room, _ := testRoom(t)

	rec := httptest.NewRecorder()
	room.HandleAdminConfig(rec, httptest.NewRequest(http.MethodPost, "/admin/config", strings.NewReader(`{"swarmSpeed": 75, "tickIntervalMs": 20}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		return room.World().Config().SwarmSpeed == 75
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, room.World().Config().TickInterval)

	rec = httptest.NewRecorder()
	room.HandleAdminConfig(rec, httptest.NewRequest(http.MethodPost, "/admin/config", strings.NewReader(`{"depleteRatio": 3}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	room.HandleAdminConfig(rec, httptest.NewRequest(http.MethodPost, "/admin/config", strings.NewReader(`{"bogus": 1}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	room.HandleAdminConfig(rec, httptest.NewRequest(http.MethodGet, "/admin/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg game.Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, 75.0, cfg.SwarmSpeed)

	rec = httptest.NewRecorder()
	room.HandleAdminConfig(rec, httptest.NewRequest(http.MethodDelete, "/admin/config", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDebugWorld(t *testing.T) {
	room, _ := testRoom(t)
	rec := httptest.NewRecorder()
	room.HandleDebugWorld(rec, httptest.NewRequest(http.MethodGet, "/debug/world", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var v game.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, 20, v.Stats.Emitters)
	assert.Empty(t, v.Teams)
}

func TestSendToUnknownConn(t *testing.T) {
	m := NewConnManager(&RoomMetrics{})
	err := m.Send("nobody", []byte{0, 0})
	assert.ErrorIs(t, err, ErrUnknownConn)
}

func TestDecodeFrameRejectsText(t *testing.T) {
	_, err := decodeFrame(websocket.TextMessage, []byte{1})
	assert.ErrorIs(t, err, ErrTextFrame)

	_, err = decodeFrame(websocket.BinaryMessage, []byte{0xee})
	assert.ErrorIs(t, err, wire.ErrUnknownMessage)

	m, err := decodeFrame(websocket.BinaryMessage, []byte{wire.TagJoin})
	require.NoError(t, err)
	assert.Equal(t, wire.Join{}, m)
}
