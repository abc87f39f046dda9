package scenario

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tramsim/consist/internal/consist"
	"github.com/tramsim/consist/internal/vehicle"
	"github.com/tramsim/consist/pkg/core"
	"github.com/tramsim/consist/pkg/hostapi"
)

// Options configure a run. All fields are optional.
type Options struct {
	Logger    *slog.Logger
	Recorder  consist.Recorder
	Configure func(core.Car) vehicle.Config
	Start     time.Time
}

// Result is the outcome of a run.
type Result struct {
	Trace    []string
	Snapshot consist.Snapshot
}

// String joins the trace lines.
func (r *Result) String() string {
	return strings.Join(r.Trace, "\n") + "\n"
}

// Run executes sc on a fresh consist.
func Run(sc *Scenario, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c, err := consist.New(consist.Deps{
		Clock:     hostapi.FixedStep(sc.DeltaTime),
		Random:    hostapi.NewSeededRandom(sc.Seed),
		Sinks:     func(core.CarID) hostapi.VariableSink { return hostapi.NewMapSink() },
		Logger:    opts.Logger,
		Recorder:  opts.Recorder,
		Configure: opts.Configure,
		Start:     opts.Start,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Trace: []string{"scenario: " + sc.Name}}

	for _, entry := range sc.Cars {
		kind := entry.Coupler
		if kind == "" {
			kind = core.CouplerHand
		}
		car := core.Car{ID: entry.ID, Name: entry.Name, Coupler: kind, Station: entry.Station}
		if _, err := c.AddCar(car); err != nil {
			return nil, err
		}
	}
	for _, l := range sc.Links {
		if err := couple(c, l); err != nil {
			return nil, err
		}
	}

	tick := 0
	for i, st := range sc.Steps {
		switch {
		case st.Couple != nil:
			if err := couple(c, *st.Couple); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			res.Trace = append(res.Trace, fmt.Sprintf("couple %s %s", st.Couple.A, st.Couple.B))
		case st.Uncouple != "":
			ep, err := ParseEndpoint(st.Uncouple)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			if err := c.Uncouple(ep); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			res.Trace = append(res.Trace, "uncouple "+ep.String())
		default:
			for n := 0; n < st.Ticks; n++ {
				for id, in := range st.Inputs {
					if err := c.SetInputs(id, in); err != nil {
						return nil, fmt.Errorf("step %d: %w", i, err)
					}
				}
				tick++
				res.Trace = append(res.Trace, traceLine(tick, sc.Trace, c.Tick()))
			}
		}
	}

	res.Snapshot = c.Snapshot()
	return res, nil
}

func couple(c *consist.Consist, l LinkSpec) error {
	a, b, err := l.endpoints()
	if err != nil {
		return err
	}
	var opts []consist.CoupleOption
	if l.Engaged {
		opts = append(opts, consist.Engaged())
	}
	return c.Couple(a, b, opts...)
}

// traceLine prints one bit per car for every traced line.
func traceLine(tick int, names []string, outs []vehicle.Outputs) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "tick %03d", tick)
	for _, name := range names {
		read := lineReaders[name]
		sb.WriteString(" " + name + "=")
		for _, o := range outs {
			if read(o.Lines) {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
	}
	return sb.String()
}
