package message

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/tramsim/consist/pkg/core"
)

// legacyDoor is a payload no car registers a handler for.
type legacyDoor struct {
	Open bool `json:"open"`
}

func (legacyDoor) Key() Key { return Key{Schema: NamespaceCoupler + ".DoorControl", Version: "0"} }

var (
	frontA = core.Endpoint{CarID: 1, Side: core.SideFront}
	backA  = core.Endpoint{CarID: 1, Side: core.SideBack}
	frontB = core.Endpoint{CarID: 2, Side: core.SideFront}
	backB  = core.Endpoint{CarID: 2, Side: core.SideBack}
)

func newPair(t *testing.T) (*Transport, *Router, *Router) {
	t.Helper()
	tr, err := NewTransport()
	require.NoError(t, err)

	ra, rb := NewRouter(), NewRouter()
	Handle(ra, func(Envelope, DoorControl) {})
	Handle(rb, func(Envelope, DoorControl) {})
	tr.Attach(1, ra)
	tr.Attach(2, rb)
	require.NoError(t, tr.Join(backA, frontB))
	return tr, ra, rb
}

func TestSealOpen(t *testing.T) {
	env, err := Seal(New(core.CabA, DoorControl{Target: core.DoorOeffnen}))
	require.NoError(t, err)
	assert.Equal(t, KeyDoorControl, env.Key())
	assert.JSONEq(t, `{"target":"oeffnen"}`, string(env.Payload))

	p, err := Open[DoorControl](env)
	require.NoError(t, err)
	assert.Equal(t, core.DoorOeffnen, p.Target)

	_, err = Open[Reverser](env)
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	env.Payload = []byte(`{"target":"sideways"}`)
	_, err = Open[DoorControl](env)
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = Seal(Message{})
	assert.Error(t, err)
}

func TestTransport_NoPeer(t *testing.T) {
	tr, _, _ := newPair(t)

	// linked but not coupled
	err := tr.Send(backA, New(core.CabNone, DoorControl{Target: core.DoorOeffnen}))
	require.ErrorIs(t, err, ErrNoPeer)

	var se *SendError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, backA, se.Endpoint)
	assert.Equal(t, KeyDoorControl, se.Key)

	// coupled state but no link
	tr.SetState(frontA, core.StateCoupled)
	assert.ErrorIs(t, tr.Send(frontA, New(core.CabNone, DoorControl{})), ErrNoPeer)

	tr.Advance()
	assert.Empty(t, tr.Receive(frontB))
	assert.Empty(t, tr.Receive(backB))
}

func TestTransport_OneTickLatency(t *testing.T) {
	tr, _, _ := newPair(t)
	tr.SetState(backA, core.StateCoupled)

	require.NoError(t, tr.Send(backA, New(core.CabA, DoorControl{Target: core.DoorOeffnen})))
	assert.Empty(t, tr.Receive(frontB), "message visible in the sending tick")

	tr.Advance()
	envs := tr.Receive(frontB)
	require.Len(t, envs, 1)
	assert.Equal(t, backA, envs[0].From)
	assert.Equal(t, frontB, envs[0].To)
	assert.Equal(t, core.CabA, envs[0].Cab)
	assert.False(t, envs[0].Reversed())

	tr.Advance()
	assert.Empty(t, tr.Receive(frontB))
	assert.Equal(t, uint64(2), tr.Tick())
}

func TestTransport_SchemaMismatch(t *testing.T) {
	tr, _, _ := newPair(t)
	tr.SetState(backA, core.StateCoupled)

	var records []core.MessageRecord
	tr.OnRecord(func(r core.MessageRecord) { records = append(records, r) })

	err := tr.Send(backA, New(core.CabNone, legacyDoor{Open: true}))
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	tr.Advance()
	assert.Empty(t, tr.Receive(frontB))
	require.Len(t, records, 1)
	assert.Equal(t, ReasonSchemaMismatch, records[0].Dropped)
}

func TestTransport_SplitDiscardsUndelivered(t *testing.T) {
	tr, _, _ := newPair(t)
	tr.SetState(backA, core.StateCoupled)
	require.NoError(t, tr.Send(backA, New(core.CabNone, DoorControl{})))

	peer, ok := tr.Split(backA)
	require.True(t, ok)
	assert.Equal(t, frontB, peer)

	tr.Advance()
	assert.Empty(t, tr.Receive(frontB))
	_, ok = tr.Peer(frontB)
	assert.False(t, ok)
}

func TestTransport_Join(t *testing.T) {
	tr, _, _ := newPair(t)

	assert.Error(t, tr.Join(frontA, backA), "self link")
	assert.Error(t, tr.Join(backA, backB), "backA already linked")
	assert.Error(t, tr.Join(frontA, core.Endpoint{CarID: 9}), "unknown car")

	require.NoError(t, tr.Join(frontA, backB))
	assert.Len(t, tr.Links(), 2)

	tr.Detach(2)
	_, ok := tr.Peer(frontA)
	assert.False(t, ok)
	_, ok = tr.Peer(backA)
	assert.False(t, ok)
}

func TestEnvelope_Reversed(t *testing.T) {
	tr, err := NewTransport()
	require.NoError(t, err)
	r := NewRouter()
	Handle(r, func(Envelope, Reverser) {})
	tr.Attach(1, r)
	tr.Attach(2, r)
	require.NoError(t, tr.Join(frontA, frontB))
	tr.SetState(frontA, core.StateCoupled)

	require.NoError(t, tr.Send(frontA, New(core.CabA, Reverser{Value: core.DirectionOfDriving{Forward: true}})))
	tr.Advance()
	envs := tr.Receive(frontB)
	require.Len(t, envs, 1)
	assert.True(t, envs[0].Reversed())
}

func TestRouter(t *testing.T) {
	r := NewRouter()
	var got []core.DoorTarget
	Handle(r, func(_ Envelope, p DoorControl) { got = append(got, p.Target) })

	var drops []string
	r.OnDrop(func(_ Envelope, err error) { drops = append(drops, Reason(err)) })

	ok, err := Seal(New(core.CabNone, DoorControl{Target: core.DoorFreigabe}))
	require.NoError(t, err)
	unknown, err := Seal(New(core.CabNone, legacyDoor{}))
	require.NoError(t, err)
	broken := ok
	broken.Payload = []byte(`[`)

	n := r.DispatchAll([]Envelope{unknown, ok, broken})
	assert.Equal(t, 1, n)
	assert.Equal(t, []core.DoorTarget{core.DoorFreigabe}, got)
	assert.ElementsMatch(t, []string{ReasonUnknownSchema, ReasonSchemaMismatch}, drops)

	assert.True(t, r.Accepts(KeyDoorControl))
	assert.False(t, r.Accepts(legacyDoor{}.Key()))
}

func TestTransport_DropMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	tr, _, _ := newPair(t)
	_ = tr.Send(backA, New(core.CabNone, DoorControl{}))
	_ = tr.Send(backA, New(core.CabNone, DoorControl{}))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var dropped int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "message.dropped" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				dropped += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), dropped)
}

func TestReason(t *testing.T) {
	assert.Equal(t, ReasonNoPeer, Reason(&SendError{Err: ErrNoPeer}))
	assert.Equal(t, "error", Reason(errors.New("boom")))
}
