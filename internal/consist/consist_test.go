package consist

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tramsim/consist/internal/vehicle"
	"github.com/tramsim/consist/pkg/core"
	"github.com/tramsim/consist/pkg/hostapi"
)

type recorder struct {
	mu       sync.Mutex
	samples  []core.CouplerSample
	events   []core.CouplingEvent
	messages []core.MessageRecord
}

func (r *recorder) RecordCouplerSample(s *core.CouplerSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, *s)
	return nil
}

func (r *recorder) RecordCouplingEvent(e *core.CouplingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

func (r *recorder) RecordMessage(m *core.MessageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *m)
	return nil
}

func (r *recorder) eventKinds() []string {
	var kinds []string
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func newConsist(t *testing.T, rec Recorder) *Consist {
	t.Helper()
	c, err := New(Deps{
		Clock:    hostapi.FixedStep(0.5),
		Random:   hostapi.NewSeededRandom(7),
		Sinks:    func(core.CarID) hostapi.VariableSink { return hostapi.NewMapSink() },
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Recorder: rec,
		Start:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return c
}

func ep(id core.CarID, side core.Side) core.Endpoint {
	return core.Endpoint{CarID: id, Side: side}
}

// chain adds n auto-coupled cars joined back to front.
func chain(t *testing.T, c *Consist, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := c.AddCar(core.Car{ID: core.CarID(i), Coupler: core.CouplerAuto})
		require.NoError(t, err)
		if i > 1 {
			require.NoError(t, c.Couple(ep(core.CarID(i-1), core.SideBack), ep(core.CarID(i), core.SideFront), Engaged()))
		}
	}
}

func railbrakes(outs []vehicle.Outputs) []bool {
	v := make([]bool, len(outs))
	for i, o := range outs {
		v[i] = o.Lines.Railbrake
	}
	return v
}

func TestConsist_ConvergesOneCarPerTick(t *testing.T) {
	const n = 5
	c := newConsist(t, nil)
	chain(t, c, n)

	for tick := 1; tick <= n+3; tick++ {
		require.NoError(t, c.SetInputs(1, vehicle.Inputs{Railbrake: true}))
		got := railbrakes(c.Tick())

		want := make([]bool, n)
		for i := range want {
			want[i] = i < tick
		}
		assert.Equal(t, want, got, "tick %d", tick)
	}
}

func TestConsist_UncoupleSplitsDomains(t *testing.T) {
	c := newConsist(t, nil)
	chain(t, c, 4)

	for i := 0; i < 4; i++ {
		require.NoError(t, c.SetInputs(1, vehicle.Inputs{Railbrake: true}))
		c.Tick()
	}

	require.NoError(t, c.Uncouple(ep(2, core.SideBack)))

	var got []bool
	for i := 0; i < 3; i++ {
		require.NoError(t, c.SetInputs(1, vehicle.Inputs{Railbrake: true}))
		got = railbrakes(c.Tick())
	}
	assert.Equal(t, []bool{true, true, false, false}, got)

	snap := c.Snapshot()
	assert.Equal(t, []Link{
		{A: ep(1, core.SideBack), B: ep(2, core.SideFront)},
		{A: ep(3, core.SideBack), B: ep(4, core.SideFront)},
	}, snap.Links)
	assert.Equal(t, core.StateDeactivated, snap.Cars[2].Couplers[core.SideFront].State)
}

func TestConsist_ClosedLoopDoesNotDeadlock(t *testing.T) {
	c := newConsist(t, nil)
	chain(t, c, 3)
	require.NoError(t, c.Couple(ep(3, core.SideBack), ep(1, core.SideFront), Engaged()))

	done := make(chan []bool)
	go func() {
		var got []bool
		for i := 0; i < 10; i++ {
			assert.NoError(t, c.SetInputs(2, vehicle.Inputs{Sanding: true}))
			outs := c.Tick()
			got = got[:0]
			for _, o := range outs {
				got = append(got, o.Lines.Sanding)
			}
		}
		done <- got
	}()

	select {
	case got := <-done:
		assert.Equal(t, []bool{true, true, true}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("ticking a closed loop did not finish")
	}
}

func TestConsist_UncoupleLeverSplitsAfterTick(t *testing.T) {
	c := newConsist(t, nil)
	chain(t, c, 2)
	c.Tick()

	lever := vehicle.Inputs{}
	lever.Couplers[core.SideBack].Uncouple = true
	require.NoError(t, c.SetInputs(1, lever))
	c.Tick()

	assert.Empty(t, c.Snapshot().Links)

	out := c.Tick()
	assert.Equal(t, core.StateDeactivated, out[0].Couplers[core.SideBack].State)
	assert.Equal(t, core.StateDeactivated, out[1].Couplers[core.SideFront].State)
}

func TestConsist_Errors(t *testing.T) {
	c := newConsist(t, nil)
	chain(t, c, 2)

	_, err := c.AddCar(core.Car{ID: 1})
	assert.ErrorIs(t, err, ErrDuplicateCar)

	assert.ErrorIs(t, c.Couple(ep(1, core.SideFront), ep(9, core.SideBack)), ErrUnknownCar)
	assert.Error(t, c.Couple(ep(1, core.SideBack), ep(2, core.SideBack)), "already linked")
	assert.ErrorIs(t, c.Uncouple(ep(1, core.SideFront)), ErrNotLinked)
	assert.ErrorIs(t, c.SetInputs(9, vehicle.Inputs{}), ErrUnknownCar)
	assert.ErrorIs(t, c.RemoveCar(9), ErrUnknownCar)

	_, err = New(Deps{})
	assert.Error(t, err)
}

func TestConsist_RemoveCar(t *testing.T) {
	rec := &recorder{}
	c := newConsist(t, rec)
	chain(t, c, 3)

	require.NoError(t, c.RemoveCar(2))
	assert.Equal(t, []core.CarID{1, 3}, c.Cars())
	assert.Empty(t, c.Snapshot().Links)

	_, ok := c.Car(2)
	assert.False(t, ok)
	assert.Equal(t, []string{"link", "link", "unlink", "unlink"}, rec.eventKinds())
}

func TestConsist_Recorder(t *testing.T) {
	rec := &recorder{}
	c := newConsist(t, rec)
	chain(t, c, 2)

	c.Tick()
	c.Tick()

	// 2 cars * 2 couplers * 2 ticks
	assert.Len(t, rec.samples, 8)
	assert.Equal(t, []string{"link", "state", "state"}, rec.eventKinds())
	assert.Equal(t, core.StateCoupled, rec.events[1].To)

	require.NotEmpty(t, rec.messages)
	for _, m := range rec.messages {
		assert.Empty(t, m.Dropped)
	}
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 500_000_000, time.UTC), rec.messages[0].Time)

	snap := c.Snapshot()
	assert.Equal(t, uint64(2), snap.Tick)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC), snap.Time)
	assert.Len(t, snap.Cars, 2)
}

func byCar(outs []vehicle.Outputs) map[core.CarID]vehicle.Outputs {
	m := make(map[core.CarID]vehicle.Outputs, len(outs))
	for _, o := range outs {
		m[o.CarID] = o
	}
	return m
}

func intercom(ctrl vehicle.IntercomControls) vehicle.Inputs {
	return vehicle.Inputs{Intercom: ctrl}
}

func TestConsist_ReaddedCarCanCallAgain(t *testing.T) {
	c := newConsist(t, nil)
	_, err := c.AddCar(core.Car{ID: 1, Coupler: core.CouplerAuto, Station: 3})
	require.NoError(t, err)
	_, err = c.AddCar(core.Car{ID: 2, Coupler: core.CouplerAuto})
	require.NoError(t, err)
	require.NoError(t, c.Couple(ep(1, core.SideBack), ep(2, core.SideFront), Engaged()))
	c.Tick()

	for i := 0; i < 2; i++ {
		require.NoError(t, c.SetInputs(1, intercom(vehicle.IntercomControls{Press: true})))
		c.Tick()
		c.Tick()
		require.NoError(t, c.SetInputs(1, intercom(vehicle.IntercomControls{Hangup: true})))
		c.Tick()
		out := byCar(c.Tick())
		require.Equal(t, uint8(0), out[2].Intercom.Current)
	}

	require.NoError(t, c.RemoveCar(1))
	_, err = c.AddCar(core.Car{ID: 1, Coupler: core.CouplerAuto, Station: 3})
	require.NoError(t, err)
	require.NoError(t, c.Couple(ep(1, core.SideBack), ep(2, core.SideFront), Engaged()))
	c.Tick()

	require.NoError(t, c.SetInputs(1, intercom(vehicle.IntercomControls{Press: true})))
	c.Tick()
	c.Tick()
	out := byCar(c.Tick())
	assert.Equal(t, uint8(3), out[2].Intercom.Current)
	assert.True(t, out[2].Intercom.Red)
}

func TestConsist_SplitClearsRelayedCall(t *testing.T) {
	c := newConsist(t, nil)
	for i := 1; i <= 3; i++ {
		car := core.Car{ID: core.CarID(i), Coupler: core.CouplerAuto}
		if i == 3 {
			car.Station = 5
		}
		_, err := c.AddCar(car)
		require.NoError(t, err)
	}
	require.NoError(t, c.Couple(ep(1, core.SideBack), ep(2, core.SideFront), Engaged()))
	require.NoError(t, c.Couple(ep(2, core.SideBack), ep(3, core.SideFront), Engaged()))
	c.Tick()

	require.NoError(t, c.SetInputs(3, intercom(vehicle.IntercomControls{Press: true})))
	for i := 0; i < 3; i++ {
		c.Tick()
	}
	out := byCar(c.Tick())
	require.Equal(t, uint8(5), out[1].Intercom.Current)

	require.NoError(t, c.Uncouple(ep(2, core.SideBack)))
	require.NoError(t, c.SetInputs(3, intercom(vehicle.IntercomControls{Hangup: true})))
	for i := 0; i < 10; i++ {
		out = byCar(c.Tick())
	}

	for _, id := range []core.CarID{1, 2, 3} {
		assert.Equal(t, uint8(0), out[id].Intercom.Current, "car %d", id)
		assert.False(t, out[id].Intercom.Red, "car %d", id)
	}
}
