package scenario

import (
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tramsim/consist/internal/config"
	"github.com/tramsim/consist/internal/storage/memory"
	"github.com/tramsim/consist/pkg/core"
)

func TestRun_Golden(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "sanding.yaml"))
	require.NoError(t, err)

	res, err := Run(sc, Options{})
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, []byte(res.String()))

	assert.Equal(t, uint64(6), res.Snapshot.Tick)
	assert.Len(t, res.Snapshot.Links, 3)
}

func TestRun_UncoupleSplitsTrace(t *testing.T) {
	sc, err := Parse([]byte(`
name: split
deltaTime: 0.5
cars:
  - {id: 1, name: a, coupler: auto}
  - {id: 2, name: b, coupler: auto}
links:
  - {a: 1/back, b: 2/front, engaged: true}
trace: [railbrake]
steps:
  - ticks: 2
    inputs: {1: {railbrake: true}}
  - uncouple: 1/back
  - ticks: 2
    inputs: {1: {railbrake: true}}
`))
	require.NoError(t, err)

	res, err := Run(sc, Options{})
	require.NoError(t, err)
	require.Len(t, res.Trace, 6)
	assert.Equal(t, "tick 002 railbrake=11", res.Trace[2])
	assert.Equal(t, "uncouple 1/back", res.Trace[3])
	assert.Equal(t, "tick 004 railbrake=10", res.Trace[5])
	assert.Empty(t, res.Snapshot.Links)
}

func TestRun_Recorder(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "sanding.yaml"))
	require.NoError(t, err)

	rec := memory.New(config.MemoryConfig{})
	require.NoError(t, rec.StartSession(&core.Session{ID: "s", Name: sc.Name}))
	for _, c := range sc.Cars {
		require.NoError(t, rec.RegisterCar(&core.Car{ID: c.ID, Name: c.Name}))
	}

	_, err = Run(sc, Options{Recorder: rec})
	require.NoError(t, err)

	counts := rec.Counts()
	assert.Equal(t, 6*4*2, counts.Samples, "two couplers per car per tick")
	assert.Equal(t, 3, counts.Events-stateEvents(rec), "one link event per coupling")
	assert.Positive(t, counts.Messages)
}

func stateEvents(rec *memory.Backend) int {
	n := 0
	for _, e := range rec.Events() {
		if e.Kind != "link" {
			n++
		}
	}
	return n
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"no name":      "deltaTime: 0.5\ncars: [{id: 1, name: a}]\n",
		"no cars":      "name: x\ndeltaTime: 0.5\n",
		"bad delta":    "name: x\ndeltaTime: 2\ncars: [{id: 1, name: a}]\n",
		"bad trace":    "name: x\ndeltaTime: 0.5\ncars: [{id: 1, name: a}]\ntrace: [pantograph]\n",
		"bad link":     "name: x\ndeltaTime: 0.5\ncars: [{id: 1, name: a}]\nlinks: [{a: 1, b: 2/front}]\n",
		"unknown key":  "name: x\ndeltaTime: 0.5\ncars: [{id: 1, name: a}]\nspeed: 3\n",
		"empty step":   "name: x\ndeltaTime: 0.5\ncars: [{id: 1, name: a}]\nsteps: [{}]\n",
		"inputs alone": "name: x\ndeltaTime: 0.5\ncars: [{id: 1, name: a}]\nsteps: [{uncouple: 1/back, inputs: {1: {sanding: true}}}]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseEndpoint(t *testing.T) {
	ep, err := ParseEndpoint("12/rear")
	require.NoError(t, err)
	assert.Equal(t, core.Endpoint{CarID: 12, Side: core.SideBack}, ep)

	_, err = ParseEndpoint("12")
	assert.Error(t, err)
	_, err = ParseEndpoint("x/front")
	assert.Error(t, err)
	_, err = ParseEndpoint("1/top")
	assert.Error(t, err)
}
