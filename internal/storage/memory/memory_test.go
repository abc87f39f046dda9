// internal/storage/memory/memory_test.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tramsim/consist/internal/config"
	"github.com/tramsim/consist/pkg/core"
)

var start = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newSession() *core.Session {
	return &core.Session{
		ID:        "abc",
		Name:      "Depot test: run 1",
		Author:    "ops",
		StartTime: start,
		DeltaTime: 0.5,
		Version:   "dev",
	}
}

func populate(t *testing.T, b *Backend) {
	t.Helper()
	require.NoError(t, b.StartSession(newSession()))
	require.NoError(t, b.RegisterCar(&core.Car{ID: 1, Name: "A", Coupler: core.CouplerHand, Station: 1}))
	require.NoError(t, b.RegisterCar(&core.Car{ID: 2, Name: "B", Coupler: core.CouplerAuto}))

	front := core.Endpoint{CarID: 2, Side: core.SideFront}
	back := core.Endpoint{CarID: 1, Side: core.SideBack}

	require.NoError(t, b.RecordCouplerSample(&core.CouplerSample{Endpoint: back, Tick: 1, Pos: 0.5, State: core.StateReady, Linked: true}))
	require.NoError(t, b.RecordCouplerSample(&core.CouplerSample{Endpoint: back, Tick: 2, Pos: 1, State: core.StateCoupled, Linked: true, Bag: true}))
	require.NoError(t, b.RecordVar(&core.VarWrite{CarID: 1, Tick: 2, Name: "couplingState_1", Value: 2}))
	require.NoError(t, b.RecordCouplingEvent(&core.CouplingEvent{Tick: 1, Endpoint: back, Peer: &front, Kind: "link"}))
	require.NoError(t, b.RecordCouplingEvent(&core.CouplingEvent{Tick: 2, Endpoint: back, Kind: "state", From: core.StateReady, To: core.StateCoupled}))
	require.NoError(t, b.RecordMessage(&core.MessageRecord{
		Tick: 3, From: back, To: front, Schema: "Gt6n_Coupler", Version: "Sanding",
		Payload: json.RawMessage(`{"value":true}`),
	}))
}

func TestBackend_RecordsPerCar(t *testing.T) {
	b := New(config.MemoryConfig{})
	populate(t, b)

	rec, ok := b.Car(1)
	require.True(t, ok)
	assert.Equal(t, "A", rec.Car.Name)
	assert.Len(t, rec.Samples, 2)
	assert.Len(t, rec.Vars, 1)

	rec2, ok := b.Car(2)
	require.True(t, ok)
	assert.Empty(t, rec2.Samples)

	_, ok = b.Car(9)
	assert.False(t, ok)

	assert.Equal(t, Counts{Cars: 2, Samples: 2, Vars: 1, Events: 2, Messages: 1}, b.Counts())
}

func TestBackend_UnknownCarIgnored(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(newSession()))

	require.NoError(t, b.RecordCouplerSample(&core.CouplerSample{Endpoint: core.Endpoint{CarID: 5}}))
	require.NoError(t, b.RecordVar(&core.VarWrite{CarID: 5, Name: "x"}))
	assert.Equal(t, Counts{}, b.Counts())
}

func TestBackend_EventPeerIsCopied(t *testing.T) {
	b := New(config.MemoryConfig{})
	peer := core.Endpoint{CarID: 2}
	require.NoError(t, b.RecordCouplingEvent(&core.CouplingEvent{Kind: "link", Peer: &peer}))

	peer.CarID = 99
	events := b.Events()
	require.Len(t, events, 1)
	assert.Equal(t, core.CarID(2), events[0].Peer.CarID)
}

func TestBackend_StartSessionResets(t *testing.T) {
	b := New(config.MemoryConfig{})
	populate(t, b)

	require.NoError(t, b.StartSession(newSession()))
	assert.Equal(t, Counts{}, b.Counts())
	assert.Empty(t, b.Events())
	assert.Empty(t, b.Messages())
}

func TestBackend_ReRegisterKeepsHistory(t *testing.T) {
	b := New(config.MemoryConfig{})
	populate(t, b)

	require.NoError(t, b.RegisterCar(&core.Car{ID: 1, Name: "A2"}))
	rec, _ := b.Car(1)
	assert.Equal(t, "A2", rec.Car.Name)
	assert.Len(t, rec.Samples, 2)
}

func TestEndSession_WithoutStart(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	assert.ErrorIs(t, b.EndSession(), ErrNoSession)
}

func TestBuildExport(t *testing.T) {
	b := New(config.MemoryConfig{})
	populate(t, b)

	export := b.buildExport()
	assert.Equal(t, FormatVersion, export.FormatVersion)
	assert.Equal(t, "abc", export.SessionID)
	assert.Equal(t, "Depot test: run 1", export.Name)
	assert.Equal(t, float32(0.5), export.DeltaTime)
	assert.Equal(t, uint64(3), export.EndTick)

	require.Len(t, export.Cars, 2)
	assert.Equal(t, core.CarID(1), export.Cars[0].ID)
	assert.Equal(t, core.CarID(2), export.Cars[1].ID)

	car := export.Cars[0]
	require.Len(t, car.Couplers, 2)
	assert.Equal(t, []any{uint64(2), "back", float32(1), float32(0), uint8(core.StateCoupled), 1, 1}, car.Couplers[1])
	assert.Equal(t, [][]any{{uint64(2), float32(2)}}, car.Vars["couplingState_1"])

	require.Len(t, export.Events, 2)
	assert.Equal(t, []any{uint64(1), "link", "1/back", "2/front", "deactivated", "deactivated"}, export.Events[0])
	assert.Equal(t, []any{uint64(2), "state", "1/back", "", "ready", "coupled"}, export.Events[1])

	require.Len(t, export.Messages, 1)
	assert.Equal(t, "Sanding", export.Messages[0].Version)
	assert.Empty(t, export.Messages[0].Dropped)
}

func TestEndSession_WritesJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})
	populate(t, b)

	require.NoError(t, b.EndSession())

	path := b.ExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "Depot_test__run_1_20240501_120000.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Export
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "abc", got.SessionID)
	assert.Len(t, got.Cars, 2)
	assert.JSONEq(t, `{"value":true}`, string(got.Messages[0].Payload))
}

func TestEndSession_WritesGzip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	populate(t, b)

	require.NoError(t, b.EndSession())

	path := b.ExportedFilePath()
	assert.Equal(t, ".gz", filepath.Ext(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var got Export
	require.NoError(t, json.NewDecoder(gz).Decode(&got))
	assert.Equal(t, uint64(3), got.EndTick)
	assert.Len(t, got.Events, 2)
}

func TestBoolToInt(t *testing.T) {
	tests := []struct {
		input    bool
		expected int
	}{
		{true, 1},
		{false, 0},
	}

	for _, tt := range tests {
		if got := boolToInt(tt.input); got != tt.expected {
			t.Errorf("boolToInt(%v) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}
