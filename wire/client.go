package wire

import "fmt"

// 客户端 → 服务端判别字节
const (
	TagJoin     uint8 = 1
	TagMoveDots uint8 = 2
	TagResync   uint8 = 3
)

// ClientMessage 客户端上行消息（封闭集合：Join / MoveDots / Resync）
type ClientMessage interface {
	Tag() uint8
	encode(w *Writer) error
}

type Join struct{}

type Resync struct{}

// SwarmMove 对单个 swarm 的移动请求，Percent ∈ (0,1]
type SwarmMove struct {
	SwarmID int32
	Percent float64
}

type MoveDots struct {
	X, Y   int32
	Swarms []SwarmMove
}

func (Join) Tag() uint8     { return TagJoin }
func (Resync) Tag() uint8   { return TagResync }
func (MoveDots) Tag() uint8 { return TagMoveDots }

func (Join) encode(*Writer) error   { return nil }
func (Resync) encode(*Writer) error { return nil }

func (m MoveDots) encode(w *Writer) error {
	w.Int32(m.X)
	w.Int32(m.Y)
	if err := w.Len16(len(m.Swarms)); err != nil {
		return err
	}
	for _, s := range m.Swarms {
		w.Int32(s.SwarmID)
		w.Float64(s.Percent)
	}
	return nil
}

// EncodeClient 编码单条上行消息为一帧
func EncodeClient(m ClientMessage) ([]byte, error) {
	w := NewWriter(16)
	w.Uint8(m.Tag())
	if err := m.encode(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeClient 解析一帧上行消息；任何多余或缺失的字节都视为畸形帧
func DecodeClient(b []byte) (ClientMessage, error) {
	r := NewReader(b)
	tag := r.Uint8()
	var m ClientMessage
	switch tag {
	case TagJoin:
		m = Join{}
	case TagResync:
		m = Resync{}
	case TagMoveDots:
		md := MoveDots{X: r.Int32(), Y: r.Int32()}
		n := r.Len16(12)
		if n > 0 {
			md.Swarms = make([]SwarmMove, 0, n)
		}
		for i := 0; i < n && r.Err() == nil; i++ {
			md.Swarms = append(md.Swarms, SwarmMove{SwarmID: r.Int32(), Percent: r.Float64()})
		}
		m = md
	default:
		if r.Err() == nil {
			r.fail(fmt.Errorf("%w: client tag %d", ErrUnknownMessage, tag))
		}
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return m, nil
}
