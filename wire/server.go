package wire

import (
	"fmt"
	"math"
)

// 服务端 → 客户端判别字节
const (
	TagJoined                 uint8 = 1
	TagGameData               uint8 = 2
	TagNewEmitter             uint8 = 3
	TagDead                   uint8 = 4
	TagNewDeadEmitter         uint8 = 5
	TagSetDeadEmitterLife     uint8 = 6
	TagRemoveSwarm            uint8 = 7
	TagKillEmitter            uint8 = 8
	TagRemoveEmitter          uint8 = 9
	TagAugmentDotCount        uint8 = 10
	TagSetTeamData            uint8 = 11
	TagNewSwarm               uint8 = 12
	TagSetSwarmHeading        uint8 = 13
	TagSetDeadEmitterDuration uint8 = 14
)

// game-data 中发射器条目的变体判别字节
const (
	EmitterKindDot  uint8 = 1
	EmitterKindDead uint8 = 2
)

// ServerMessage 服务端下行消息（封闭集合）
type ServerMessage interface {
	Tag() uint8
	encode(w *Writer) error
}

type Joined struct {
	TeamID         string
	StartX, StartY int32
}

type TeamData struct {
	TeamID string
	Color  string
}

type SwarmData struct {
	TeamID  string
	SwarmID int32
	Count   uint16
	X, Y    int32
	// 无航向时 HasHeading=false
	HeadingX, HeadingY int32
	HasHeading         bool
	Owner              int32
	HasOwner           bool
}

// EmitterData 是 game-data 中的发射器条目，Kind 决定哪些字段有效
type EmitterData struct {
	Kind      uint8
	TeamID    string // 仅 EmitterKindDot
	EmitterID int32
	X, Y      int32
	Power     uint8
	Life      uint16 // 仅 EmitterKindDead
	Duration  uint16 // 仅 EmitterKindDead
}

type GameData struct {
	Width, Height uint32
	Teams         []TeamData
	Swarms        []SwarmData
	Emitters      []EmitterData
}

type NewEmitter struct {
	X, Y      int32
	Power     uint8
	EmitterID int32
	TeamID    string
}

type Dead struct{}

type NewDeadEmitter struct {
	X, Y      int32
	Power     uint8
	EmitterID int32
	Duration  uint16
	Life      uint16
}

type SetDeadEmitterLife struct {
	EmitterID int32
	Life      int16
}

type SetDeadEmitterDuration struct {
	EmitterID int32
	Duration  int16
}

type RemoveSwarm struct{ SwarmID int32 }

type KillEmitter struct{ EmitterID int32 }

type RemoveEmitter struct{ EmitterID int32 }

type AugmentDotCount struct {
	SwarmID int32
	Delta   int16
}

type SetTeamData struct{ Teams []TeamData }

type NewSwarm struct {
	SwarmID  int32
	X, Y     int32
	TeamID   string
	Owner    int32
	HasOwner bool
}

type SetSwarmHeading struct {
	SwarmID int32
	X, Y    int32
}

func (Joined) Tag() uint8                 { return TagJoined }
func (GameData) Tag() uint8               { return TagGameData }
func (NewEmitter) Tag() uint8             { return TagNewEmitter }
func (Dead) Tag() uint8                   { return TagDead }
func (NewDeadEmitter) Tag() uint8         { return TagNewDeadEmitter }
func (SetDeadEmitterLife) Tag() uint8     { return TagSetDeadEmitterLife }
func (SetDeadEmitterDuration) Tag() uint8 { return TagSetDeadEmitterDuration }
func (RemoveSwarm) Tag() uint8            { return TagRemoveSwarm }
func (KillEmitter) Tag() uint8            { return TagKillEmitter }
func (RemoveEmitter) Tag() uint8          { return TagRemoveEmitter }
func (AugmentDotCount) Tag() uint8        { return TagAugmentDotCount }
func (SetTeamData) Tag() uint8            { return TagSetTeamData }
func (NewSwarm) Tag() uint8               { return TagNewSwarm }
func (SetSwarmHeading) Tag() uint8        { return TagSetSwarmHeading }

func (m Joined) encode(w *Writer) error {
	w.Int32(m.StartX)
	w.Int32(m.StartY)
	return w.String(m.TeamID)
}

func writeTeams(w *Writer, teams []TeamData) error {
	if err := w.Len16(len(teams)); err != nil {
		return err
	}
	for _, t := range teams {
		if err := w.String(t.TeamID); err != nil {
			return err
		}
		if err := w.String(t.Color); err != nil {
			return err
		}
	}
	return nil
}

func readTeams(r *Reader) []TeamData {
	n := r.Len16(4)
	if n == 0 {
		return nil
	}
	teams := make([]TeamData, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		teams = append(teams, TeamData{TeamID: r.String(), Color: r.String()})
	}
	return teams
}

func (m GameData) encode(w *Writer) error {
	w.Uint32(m.Width)
	w.Uint32(m.Height)
	if err := writeTeams(w, m.Teams); err != nil {
		return err
	}
	if err := w.Len16(len(m.Swarms)); err != nil {
		return err
	}
	for _, s := range m.Swarms {
		if err := w.String(s.TeamID); err != nil {
			return err
		}
		w.Int32(s.SwarmID)
		w.Uint16(s.Count)
		w.Int32(s.X)
		w.Int32(s.Y)
		w.OptionalInt32(s.HeadingX, s.HasHeading)
		w.OptionalInt32(s.HeadingY, s.HasHeading)
		w.OptionalInt32(s.Owner, s.HasOwner)
	}
	if err := w.Len16(len(m.Emitters)); err != nil {
		return err
	}
	for _, e := range m.Emitters {
		w.Uint8(e.Kind)
		switch e.Kind {
		case EmitterKindDot:
			if err := w.String(e.TeamID); err != nil {
				return err
			}
			w.Int32(e.EmitterID)
			w.Int32(e.X)
			w.Int32(e.Y)
			w.Uint8(e.Power)
		case EmitterKindDead:
			w.Int32(e.EmitterID)
			w.Int32(e.X)
			w.Int32(e.Y)
			w.Uint8(e.Power)
			w.Uint16(e.Life)
			w.Uint16(e.Duration)
		default:
			return fmt.Errorf("wire: unknown emitter kind %d", e.Kind)
		}
	}
	return nil
}

func readGameData(r *Reader) GameData {
	m := GameData{Width: r.Uint32(), Height: r.Uint32()}
	m.Teams = readTeams(r)
	if n := r.Len16(24); n > 0 {
		m.Swarms = make([]SwarmData, 0, n)
		for i := 0; i < n && r.Err() == nil; i++ {
			s := SwarmData{TeamID: r.String(), SwarmID: r.Int32(), Count: r.Uint16(), X: r.Int32(), Y: r.Int32()}
			hx, okX := r.OptionalInt32()
			hy, okY := r.OptionalInt32()
			if okX && okY {
				s.HeadingX, s.HeadingY, s.HasHeading = hx, hy, true
			}
			s.Owner, s.HasOwner = r.OptionalInt32()
			m.Swarms = append(m.Swarms, s)
		}
	}
	if n := r.Len16(14); n > 0 {
		m.Emitters = make([]EmitterData, 0, n)
		for i := 0; i < n && r.Err() == nil; i++ {
			e := EmitterData{Kind: r.Uint8()}
			switch e.Kind {
			case EmitterKindDot:
				e.TeamID = r.String()
				e.EmitterID, e.X, e.Y = r.Int32(), r.Int32(), r.Int32()
				e.Power = r.Uint8()
			case EmitterKindDead:
				e.EmitterID, e.X, e.Y = r.Int32(), r.Int32(), r.Int32()
				e.Power = r.Uint8()
				e.Life, e.Duration = r.Uint16(), r.Uint16()
			default:
				r.fail(fmt.Errorf("%w: emitter kind %d", ErrUnknownMessage, e.Kind))
			}
			m.Emitters = append(m.Emitters, e)
		}
	}
	return m
}

func (m NewEmitter) encode(w *Writer) error {
	w.Int32(m.X)
	w.Int32(m.Y)
	w.Uint8(m.Power)
	w.Int32(m.EmitterID)
	return w.String(m.TeamID)
}

func (Dead) encode(*Writer) error { return nil }

func (m NewDeadEmitter) encode(w *Writer) error {
	w.Int32(m.X)
	w.Int32(m.Y)
	w.Uint8(m.Power)
	w.Int32(m.EmitterID)
	w.Uint16(m.Duration)
	w.Uint16(m.Life)
	return nil
}

func (m SetDeadEmitterLife) encode(w *Writer) error {
	w.Int32(m.EmitterID)
	w.Int16(m.Life)
	return nil
}

func (m SetDeadEmitterDuration) encode(w *Writer) error {
	w.Int32(m.EmitterID)
	w.Int16(m.Duration)
	return nil
}

func (m RemoveSwarm) encode(w *Writer) error {
	w.Int32(m.SwarmID)
	return nil
}

func (m KillEmitter) encode(w *Writer) error {
	w.Int32(m.EmitterID)
	return nil
}

func (m RemoveEmitter) encode(w *Writer) error {
	w.Int32(m.EmitterID)
	return nil
}

func (m AugmentDotCount) encode(w *Writer) error {
	w.Int32(m.SwarmID)
	w.Int16(m.Delta)
	return nil
}

func (m SetTeamData) encode(w *Writer) error {
	return writeTeams(w, m.Teams)
}

func (m NewSwarm) encode(w *Writer) error {
	w.Int32(m.SwarmID)
	w.Int32(m.X)
	w.Int32(m.Y)
	if err := w.String(m.TeamID); err != nil {
		return err
	}
	w.OptionalInt32(m.Owner, m.HasOwner)
	return nil
}

func (m SetSwarmHeading) encode(w *Writer) error {
	w.Int32(m.SwarmID)
	w.Int32(m.X)
	w.Int32(m.Y)
	return nil
}

// EncodeBatch 把同一 tick 内发往某连接的所有消息编码为一帧：
// uint16 条数 + 逐条（判别字节 + 字段）
func EncodeBatch(msgs []ServerMessage) ([]byte, error) {
	w := NewWriter(64 + 8*len(msgs))
	if err := w.Len16(len(msgs)); err != nil {
		return nil, err
	}
	for _, m := range msgs {
		w.Uint8(m.Tag())
		if err := m.encode(w); err != nil {
			return nil, fmt.Errorf("encode tag %d: %w", m.Tag(), err)
		}
	}
	return w.Bytes(), nil
}

// MaxBatch 单帧可容纳的最大消息条数
const MaxBatch = math.MaxUint16

// EncodeFrames 与 EncodeBatch 相同，但超过 MaxBatch 条时按顺序拆成多帧；
// 客户端逐帧解码即可还原原有顺序
func EncodeFrames(msgs []ServerMessage) ([][]byte, error) {
	frames := make([][]byte, 0, len(msgs)/MaxBatch+1)
	for len(msgs) > 0 {
		n := min(len(msgs), MaxBatch)
		frame, err := EncodeBatch(msgs[:n])
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
		msgs = msgs[n:]
	}
	return frames, nil
}

// DecodeBatch 是 EncodeBatch 的逆过程
func DecodeBatch(b []byte) ([]ServerMessage, error) {
	r := NewReader(b)
	n := r.Len16(1)
	var msgs []ServerMessage
	if n > 0 {
		msgs = make([]ServerMessage, 0, n)
	}
	for i := 0; i < n && r.Err() == nil; i++ {
		m := readServerMessage(r)
		if r.Err() != nil {
			break
		}
		msgs = append(msgs, m)
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return msgs, nil
}

func readServerMessage(r *Reader) ServerMessage {
	tag := r.Uint8()
	switch tag {
	case TagJoined:
		return Joined{StartX: r.Int32(), StartY: r.Int32(), TeamID: r.String()}
	case TagGameData:
		return readGameData(r)
	case TagNewEmitter:
		return NewEmitter{X: r.Int32(), Y: r.Int32(), Power: r.Uint8(), EmitterID: r.Int32(), TeamID: r.String()}
	case TagDead:
		return Dead{}
	case TagNewDeadEmitter:
		return NewDeadEmitter{X: r.Int32(), Y: r.Int32(), Power: r.Uint8(), EmitterID: r.Int32(), Duration: r.Uint16(), Life: r.Uint16()}
	case TagSetDeadEmitterLife:
		return SetDeadEmitterLife{EmitterID: r.Int32(), Life: r.Int16()}
	case TagRemoveSwarm:
		return RemoveSwarm{SwarmID: r.Int32()}
	case TagKillEmitter:
		return KillEmitter{EmitterID: r.Int32()}
	case TagRemoveEmitter:
		return RemoveEmitter{EmitterID: r.Int32()}
	case TagAugmentDotCount:
		return AugmentDotCount{SwarmID: r.Int32(), Delta: r.Int16()}
	case TagSetTeamData:
		return SetTeamData{Teams: readTeams(r)}
	case TagNewSwarm:
		m := NewSwarm{SwarmID: r.Int32(), X: r.Int32(), Y: r.Int32(), TeamID: r.String()}
		m.Owner, m.HasOwner = r.OptionalInt32()
		return m
	case TagSetSwarmHeading:
		return SetSwarmHeading{SwarmID: r.Int32(), X: r.Int32(), Y: r.Int32()}
	case TagSetDeadEmitterDuration:
		return SetDeadEmitterDuration{EmitterID: r.Int32(), Duration: r.Int16()}
	default:
		r.fail(fmt.Errorf("%w: server tag %d", ErrUnknownMessage, tag))
		return nil
	}
}
