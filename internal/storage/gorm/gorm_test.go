package gormstorage

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tramsim/consist/internal/database"
	"github.com/tramsim/consist/pkg/core"
	"gorm.io/gorm"
)

var (
	back  = core.Endpoint{CarID: 1, Side: core.SideBack}
	front = core.Endpoint{CarID: 2, Side: core.SideFront}
	t0    = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

// newTestBackend creates a Backend with no DB (queue-only mode for unit testing).
func newTestBackend() *Backend {
	return New(Dependencies{})
}

func newSQLBackend(t *testing.T) (*Backend, *gorm.DB) {
	t.Helper()
	db, err := database.GetSqliteDB(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	b := New(Dependencies{DB: db, FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b, db
}

func record(t *testing.T, b *Backend) {
	t.Helper()
	require.NoError(t, b.RegisterCar(&core.Car{ID: 1, Name: "A", Coupler: core.CouplerHand}))
	require.NoError(t, b.RegisterCar(&core.Car{ID: 2, Name: "B", Coupler: core.CouplerAuto}))
	require.NoError(t, b.RecordCouplerSample(&core.CouplerSample{Endpoint: back, Tick: 1, Time: t0, Pos: 1, State: core.StateCoupled, Linked: true}))
	require.NoError(t, b.RecordVar(&core.VarWrite{CarID: 1, Tick: 1, Name: "couplingState_1", Value: 2}))
	require.NoError(t, b.RecordCouplingEvent(&core.CouplingEvent{Tick: 1, Time: t0, Endpoint: back, Peer: &front, Kind: "link"}))
	require.NoError(t, b.RecordCouplingEvent(&core.CouplingEvent{Tick: 1, Time: t0, Endpoint: back, Kind: "state", From: core.StateReady, To: core.StateCoupled}))
	require.NoError(t, b.RecordMessage(&core.MessageRecord{
		Tick: 1, Time: t0, From: back, To: front, Schema: "Gt6n_Coupler", Version: "Sanding",
		Payload: json.RawMessage(`{"value":true}`),
	}))
	require.NoError(t, b.RecordMessage(&core.MessageRecord{
		Tick: 1, Time: t0, From: back, To: front, Schema: "Gt6n_Coupler", Version: "Unknown", Dropped: "schema_mismatch",
	}))
}

func TestInitClose_QueueOnly(t *testing.T) {
	b := newTestBackend()

	require.NoError(t, b.Init())
	require.NotNil(t, b.queues)
	require.NotNil(t, b.stopChan)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "second close is a no-op")
}

func TestRecord_QueuesToInternalQueue(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	record(t, b)
	assert.Equal(t, 2, b.queues.Cars.Len())
	assert.Equal(t, 1, b.queues.Samples.Len())
	assert.Equal(t, 1, b.queues.Vars.Len())
	assert.Equal(t, 2, b.queues.CouplingEvents.Len())
	assert.Equal(t, 2, b.queues.Messages.Len())
	assert.Equal(t, 8, b.Pending())

	// queue-only mode keeps everything
	require.NoError(t, b.Flush())
	assert.Equal(t, 8, b.Pending())
}

func TestEndSession_WithoutStart(t *testing.T) {
	b := newTestBackend()
	assert.ErrorIs(t, b.EndSession(), ErrNoSession)
}

func TestRowsCarrySessionID(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.StartSession(&core.Session{ID: "s1"}))
	require.NoError(t, b.RecordVar(&core.VarWrite{CarID: 1}))

	items := b.queues.Vars.Drain()
	require.Len(t, items, 1)
	assert.Equal(t, "s1", items[0].SessionID)
}

func TestEventFromCore_Peer(t *testing.T) {
	ev := eventFromCore("s", core.CouplingEvent{Endpoint: back, Peer: &front, Kind: "link"})
	require.NotNil(t, ev.PeerCarID)
	require.NotNil(t, ev.PeerSide)
	assert.Equal(t, uint16(2), *ev.PeerCarID)
	assert.Equal(t, uint8(core.SideFront), *ev.PeerSide)

	ev = eventFromCore("s", core.CouplingEvent{Endpoint: back, Kind: "state"})
	assert.Nil(t, ev.PeerCarID)
}

func TestSQLite_RoundTrip(t *testing.T) {
	b, db := newSQLBackend(t)

	require.NoError(t, b.StartSession(&core.Session{ID: "run-1", Name: "Depot", StartTime: t0, DeltaTime: 0.5}))
	record(t, b)
	require.NoError(t, b.EndSession())
	assert.Equal(t, 0, b.Pending())

	var session Session
	require.NoError(t, db.First(&session, "id = ?", "run-1").Error)
	assert.Equal(t, "Depot", session.Name)
	assert.NotNil(t, session.EndTime)

	var cars []Car
	require.NoError(t, db.Order("car_id").Find(&cars).Error)
	require.Len(t, cars, 2)
	assert.Equal(t, "hand", cars[0].Coupler)
	assert.Equal(t, "run-1", cars[1].SessionID)

	var sample CouplerSample
	require.NoError(t, db.First(&sample).Error)
	assert.Equal(t, float32(1), sample.Pos)
	assert.Equal(t, uint8(core.StateCoupled), sample.State)

	var events []CouplingEvent
	require.NoError(t, db.Order("id").Find(&events).Error)
	require.Len(t, events, 2)
	require.NotNil(t, events[0].PeerCarID)
	assert.Equal(t, uint16(2), *events[0].PeerCarID)
	assert.Nil(t, events[1].PeerCarID)

	var msgs []Message
	require.NoError(t, db.Order("id").Find(&msgs).Error)
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `{"value":true}`, string(msgs[0].Payload))
	assert.Equal(t, "schema_mismatch", msgs[1].Dropped)

	assert.GreaterOrEqual(t, int64(b.GetLastDBWriteDuration()), int64(0))
}

func TestClose_FlushesQueue(t *testing.T) {
	db, err := database.GetSqliteDB(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	b := New(Dependencies{DB: db, FlushInterval: time.Hour})
	require.NoError(t, b.Init())

	require.NoError(t, b.RecordVar(&core.VarWrite{CarID: 3, Name: "x", Value: 1}))
	require.NoError(t, b.Close())

	var n int64
	require.NoError(t, db.Model(&VarWrite{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestWriterLoop_FlushesPeriodically(t *testing.T) {
	db, err := database.GetSqliteDB(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	b := New(Dependencies{DB: db, FlushInterval: 10 * time.Millisecond})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.RecordVar(&core.VarWrite{CarID: 3, Name: "x", Value: 1}))

	assert.Eventually(t, func() bool { return b.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)
}
