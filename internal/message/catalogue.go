package message

import "github.com/tramsim/consist/pkg/core"

// Schema namespaces.
const (
	NamespaceCoupler  = "Gt6n_Coupler"
	NamespaceIntercom = "Gt6n_Intercom"
	NamespaceTrainBus = "Std_TrainBus"

	Version1 = "1"
)

func key(namespace, name string) Key {
	return Key{Schema: namespace + "." + name, Version: Version1}
}

var (
	KeyCarActiv        = key(NamespaceCoupler, "CarActiv")
	KeyRailbrake       = key(NamespaceCoupler, "Railbrake")
	KeySpringBrake     = key(NamespaceCoupler, "SpringBrake")
	KeySanding         = key(NamespaceCoupler, "Sanding")
	KeyEmergencyBrake  = key(NamespaceCoupler, "EmergencyBrake")
	KeyDoorControl     = key(NamespaceCoupler, "DoorControl")
	KeyReverser        = key(NamespaceCoupler, "Reverser")
	KeyThrottle        = key(NamespaceCoupler, "Throttle")
	KeyVideoSystem     = key(NamespaceCoupler, "VideoSystem")
	KeyBagVisibility   = key(NamespaceCoupler, "BagVisibility")
	KeyIntercomCall    = key(NamespaceIntercom, "Call")
	KeyIntercomConfirm = key(NamespaceIntercom, "Confirm")
	KeyEcoupler        = key(NamespaceTrainBus, "Ecoupler")
)

// CarActiv is set while any car of the consist is powered up.
type CarActiv struct {
	Value bool `json:"value"`
}

func (CarActiv) Key() Key { return KeyCarActiv }

// Railbrake requests the magnetic track brakes.
type Railbrake struct {
	Value bool `json:"value"`
}

func (Railbrake) Key() Key { return KeyRailbrake }

// SpringBrake requests the spring-applied parking brake.
type SpringBrake struct {
	Value bool `json:"value"`
}

func (SpringBrake) Key() Key { return KeySpringBrake }

// Sanding requests sand on the rails.
type Sanding struct {
	Value bool `json:"value"`
}

func (Sanding) Key() Key { return KeySanding }

// EmergencyBrake is set while any emergency brake is pulled.
type EmergencyBrake struct {
	Value bool `json:"value"`
}

func (EmergencyBrake) Key() Key { return KeyEmergencyBrake }

// DoorControl carries the door command of the consist.
type DoorControl struct {
	Target core.DoorTarget `json:"target"`
}

func (DoorControl) Key() Key { return KeyDoorControl }

// Reverser carries the reverser state as seen from the sending car.
type Reverser struct {
	Value core.DirectionOfDriving `json:"value"`
}

func (Reverser) Key() Key { return KeyReverser }

// Throttle carries the traction request in [0,1].
type Throttle struct {
	Value float32 `json:"value"`
}

func (Throttle) Key() Key { return KeyThrottle }

// VideoSystem is set while the passenger video system is active.
type VideoSystem struct {
	Active bool `json:"active"`
}

func (VideoSystem) Key() Key { return KeyVideoSystem }

// BagVisibility tells the neighbour whether the coupling bellows are shown.
// It is never relayed.
type BagVisibility struct {
	Value bool `json:"value"`
}

func (BagVisibility) Key() Key { return KeyBagVisibility }

// IntercomCall announces the intercom station that is calling, or 0 when the
// call ended. Origin and Seq identify the announcement for relays.
type IntercomCall struct {
	Origin  core.CarID `json:"origin"`
	Seq     uint32     `json:"seq"`
	Station uint8      `json:"station"`
}

func (IntercomCall) Key() Key { return KeyIntercomCall }

// IntercomConfirm is sent by the driver's cab to accept a call.
type IntercomConfirm struct {
	Origin  core.CarID `json:"origin"`
	Seq     uint32     `json:"seq"`
	Station uint8      `json:"station"`
}

func (IntercomConfirm) Key() Key { return KeyIntercomConfirm }

// Ecoupler reports the electrical coupler state of the sending endpoint.
type Ecoupler struct {
	State core.CouplingState `json:"state"`
}

func (Ecoupler) Key() Key { return KeyEcoupler }
