package gormstorage

import (
	"time"

	"github.com/tramsim/consist/pkg/core"
	"gorm.io/datatypes"
)

// Models lists every table the backend migrates.
var Models = []any{
	&Session{},
	&Car{},
	&CouplerSample{},
	&VarWrite{},
	&CouplingEvent{},
	&Message{},
}

// Session is one recorded run.
type Session struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string
	Author    string
	Version   string
	StartTime time.Time
	EndTime   *time.Time
	DeltaTime float32
}

// Car is a car registered during a session.
type Car struct {
	ID        uint   `gorm:"primarykey"`
	SessionID string `gorm:"index;size:64"`
	CarID     uint16 `gorm:"index"`
	Name      string
	Coupler   string `gorm:"size:16"`
	Station   uint8
	JoinTick  uint64
	JoinTime  time.Time
}

// CouplerSample is the state of one coupler at a tick.
type CouplerSample struct {
	ID        uint      `gorm:"primarykey"`
	Time      time.Time `gorm:"index"`
	SessionID string    `gorm:"index;size:64"`
	Tick      uint64
	CarID     uint16 `gorm:"index"`
	Side      uint8
	Pos       float32
	Speed     float32
	State     uint8
	Linked    bool
	Bag       bool
}

// VarWrite is one host variable write.
type VarWrite struct {
	ID        uint   `gorm:"primarykey"`
	SessionID string `gorm:"index;size:64"`
	Tick      uint64
	CarID     uint16 `gorm:"index"`
	Name      string `gorm:"size:64"`
	Value     float32
}

// CouplingEvent is a link change or state transition.
type CouplingEvent struct {
	ID        uint      `gorm:"primarykey"`
	Time      time.Time `gorm:"index"`
	SessionID string    `gorm:"index;size:64"`
	Tick      uint64
	CarID     uint16
	Side      uint8
	PeerCarID *uint16
	PeerSide  *uint8
	Kind      string `gorm:"size:16"`
	FromState uint8
	ToState   uint8
}

// Message is one cross-car message.
type Message struct {
	ID        uint      `gorm:"primarykey"`
	Time      time.Time `gorm:"index"`
	SessionID string    `gorm:"index;size:64"`
	Tick      uint64
	FromCarID uint16
	FromSide  uint8
	ToCarID   uint16
	ToSide    uint8
	Schema    string `gorm:"size:64"`
	Version   string `gorm:"size:64"`
	Payload   datatypes.JSON
	Dropped   string `gorm:"size:32"`
}

func sessionFromCore(s core.Session) Session {
	return Session{
		ID:        s.ID,
		Name:      s.Name,
		Author:    s.Author,
		Version:   s.Version,
		StartTime: s.StartTime,
		DeltaTime: s.DeltaTime,
	}
}

func carFromCore(sessionID string, c core.Car) Car {
	return Car{
		SessionID: sessionID,
		CarID:     uint16(c.ID),
		Name:      c.Name,
		Coupler:   string(c.Coupler),
		Station:   c.Station,
		JoinTick:  c.JoinTick,
		JoinTime:  c.JoinTime,
	}
}

func sampleFromCore(sessionID string, s core.CouplerSample) CouplerSample {
	return CouplerSample{
		Time:      s.Time,
		SessionID: sessionID,
		Tick:      s.Tick,
		CarID:     uint16(s.Endpoint.CarID),
		Side:      uint8(s.Endpoint.Side),
		Pos:       s.Pos,
		Speed:     s.Speed,
		State:     uint8(s.State),
		Linked:    s.Linked,
		Bag:       s.Bag,
	}
}

func varFromCore(sessionID string, v core.VarWrite) VarWrite {
	return VarWrite{
		SessionID: sessionID,
		Tick:      v.Tick,
		CarID:     uint16(v.CarID),
		Name:      v.Name,
		Value:     v.Value,
	}
}

func eventFromCore(sessionID string, e core.CouplingEvent) CouplingEvent {
	ev := CouplingEvent{
		Time:      e.Time,
		SessionID: sessionID,
		Tick:      e.Tick,
		CarID:     uint16(e.Endpoint.CarID),
		Side:      uint8(e.Endpoint.Side),
		Kind:      e.Kind,
		FromState: uint8(e.From),
		ToState:   uint8(e.To),
	}
	if e.Peer != nil {
		car, side := uint16(e.Peer.CarID), uint8(e.Peer.Side)
		ev.PeerCarID = &car
		ev.PeerSide = &side
	}
	return ev
}

func messageFromCore(sessionID string, m core.MessageRecord) Message {
	return Message{
		Time:      m.Time,
		SessionID: sessionID,
		Tick:      m.Tick,
		FromCarID: uint16(m.From.CarID),
		FromSide:  uint8(m.From.Side),
		ToCarID:   uint16(m.To.CarID),
		ToSide:    uint8(m.To.Side),
		Schema:    m.Schema,
		Version:   m.Version,
		Payload:   datatypes.JSON(m.Payload),
		Dropped:   m.Dropped,
	}
}
