package vehicle

import (
	"github.com/tramsim/consist/internal/controlline"
	"github.com/tramsim/consist/internal/message"
	"github.com/tramsim/consist/pkg/core"
)

// LineValues are the consist-wide control signals as seen by one car.
type LineValues struct {
	CarActive      bool                    `json:"carActive"`
	Railbrake      bool                    `json:"railbrake"`
	SpringBrake    bool                    `json:"springBrake"`
	Sanding        bool                    `json:"sanding"`
	EmergencyBrake bool                    `json:"emergencyBrake"`
	DoorTarget     core.DoorTarget         `json:"doorTarget"`
	Reverser       core.DirectionOfDriving `json:"reverser"`
	Throttle       float32                 `json:"throttle"`
	Video          bool                    `json:"video"`
}

// binding ties a control line to the message that carries it between cars.
type binding interface {
	register(r *message.Router)
	drop(side core.Side)
	step(in *Inputs)
	outgoing(side core.Side) message.Payload
}

type lineBinding[T any, P message.Payload] struct {
	line   *controlline.Line[T]
	local  func(*Inputs) T
	wrap   func(T) P
	unwrap func(P) T
	// flip converts a value received from a car facing the other way.
	flip func(T) T
}

func bind[T any, P message.Payload](
	id controlline.LineID,
	c controlline.Combinator[T],
	local func(*Inputs) T,
	wrap func(T) P,
	unwrap func(P) T,
) *lineBinding[T, P] {
	return &lineBinding[T, P]{
		line:   controlline.New(id, c),
		local:  local,
		wrap:   wrap,
		unwrap: unwrap,
	}
}

func (b *lineBinding[T, P]) register(r *message.Router) {
	message.Handle(r, func(e message.Envelope, p P) {
		v := b.unwrap(p)
		if b.flip != nil && e.Reversed() {
			v = b.flip(v)
		}
		b.line.Receive(e.To.Side, v)
	})
}

func (b *lineBinding[T, P]) drop(side core.Side) { b.line.Drop(side) }

func (b *lineBinding[T, P]) step(in *Inputs) { b.line.Step(b.local(in)) }

func (b *lineBinding[T, P]) outgoing(side core.Side) message.Payload {
	return b.wrap(b.line.Outgoing(side))
}

// lines is the fixed set of control lines every car carries.
type lines struct {
	carActive      *lineBinding[bool, message.CarActiv]
	railbrake      *lineBinding[bool, message.Railbrake]
	springBrake    *lineBinding[bool, message.SpringBrake]
	sanding        *lineBinding[bool, message.Sanding]
	emergencyBrake *lineBinding[bool, message.EmergencyBrake]
	doorTarget     *lineBinding[core.DoorTarget, message.DoorControl]
	reverser       *lineBinding[core.DirectionOfDriving, message.Reverser]
	throttle       *lineBinding[float32, message.Throttle]
	video          *lineBinding[bool, message.VideoSystem]

	all []binding
}

func newLines() *lines {
	l := &lines{
		carActive: bind(controlline.LineCarActive, controlline.Or,
			func(in *Inputs) bool { return in.CarActive },
			func(v bool) message.CarActiv { return message.CarActiv{Value: v} },
			func(p message.CarActiv) bool { return p.Value }),
		railbrake: bind(controlline.LineRailbrake, controlline.Or,
			func(in *Inputs) bool { return in.Railbrake },
			func(v bool) message.Railbrake { return message.Railbrake{Value: v} },
			func(p message.Railbrake) bool { return p.Value }),
		springBrake: bind(controlline.LineSpringBrake, controlline.Or,
			func(in *Inputs) bool { return in.SpringBrake },
			func(v bool) message.SpringBrake { return message.SpringBrake{Value: v} },
			func(p message.SpringBrake) bool { return p.Value }),
		sanding: bind(controlline.LineSanding, controlline.Or,
			func(in *Inputs) bool { return in.Sanding },
			func(v bool) message.Sanding { return message.Sanding{Value: v} },
			func(p message.Sanding) bool { return p.Value }),
		emergencyBrake: bind(controlline.LineEmergencyBrake, controlline.Or,
			func(in *Inputs) bool { return in.EmergencyBrake },
			func(v bool) message.EmergencyBrake { return message.EmergencyBrake{Value: v} },
			func(p message.EmergencyBrake) bool { return p.Value }),
		doorTarget: bind(controlline.LineDoorTarget, controlline.DoorMerge,
			func(in *Inputs) core.DoorTarget { return in.DoorTarget },
			func(v core.DoorTarget) message.DoorControl { return message.DoorControl{Target: v} },
			func(p message.DoorControl) core.DoorTarget { return p.Target }),
		reverser: bind(controlline.LineReverser, controlline.DirectionMerge,
			func(in *Inputs) core.DirectionOfDriving { return in.Reverser },
			func(v core.DirectionOfDriving) message.Reverser { return message.Reverser{Value: v} },
			func(p message.Reverser) core.DirectionOfDriving { return p.Value }),
		throttle: bind(controlline.LineThrottle, controlline.Max[float32](),
			func(in *Inputs) float32 { return clampThrottle(in.Throttle) },
			func(v float32) message.Throttle { return message.Throttle{Value: v} },
			func(p message.Throttle) float32 { return clampThrottle(p.Value) }),
		video: bind(controlline.LineVideo, controlline.Or,
			func(in *Inputs) bool { return in.Video },
			func(v bool) message.VideoSystem { return message.VideoSystem{Active: v} },
			func(p message.VideoSystem) bool { return p.Active }),
	}
	l.reverser.flip = core.DirectionOfDriving.Flip

	l.all = []binding{
		l.carActive, l.railbrake, l.springBrake, l.sanding, l.emergencyBrake,
		l.doorTarget, l.reverser, l.throttle, l.video,
	}
	return l
}

func (l *lines) values() LineValues {
	return LineValues{
		CarActive:      l.carActive.line.Value(),
		Railbrake:      l.railbrake.line.Value(),
		SpringBrake:    l.springBrake.line.Value(),
		Sanding:        l.sanding.line.Value(),
		EmergencyBrake: l.emergencyBrake.line.Value(),
		DoorTarget:     l.doorTarget.line.Value(),
		Reverser:       l.reverser.line.Value(),
		Throttle:       l.throttle.line.Value(),
		Video:          l.video.line.Value(),
	}
}

func clampThrottle(v float32) float32 {
	if !(v > 0) {
		return 0
	}
	return min(v, 1)
}
