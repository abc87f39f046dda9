// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/tramsim/consist/pkg/core"
)

// FormatVersion is written into every export.
const FormatVersion = "1"

// Export is the root JSON structure
type Export struct {
	FormatVersion string        `json:"formatVersion"`
	Version       string        `json:"version"`
	SessionID     string        `json:"sessionId"`
	Name          string        `json:"name"`
	Author        string        `json:"author"`
	StartTime     time.Time     `json:"startTime"`
	DeltaTime     float32       `json:"deltaTime"`
	EndTick       uint64        `json:"endTick"`
	Cars          []CarJSON     `json:"cars"`
	Events        [][]any       `json:"events"`
	Messages      []MessageJSON `json:"messages"`
}

// CarJSON is one car and its time series.
//
// Couplers rows are [tick, side, pos, speed, state, linked, bag].
// Vars rows are [tick, value], keyed by variable name.
type CarJSON struct {
	ID       core.CarID         `json:"id"`
	Name     string             `json:"name"`
	Coupler  core.CouplerKind   `json:"coupler"`
	Station  uint8              `json:"station,omitempty"`
	JoinTick uint64             `json:"joinTick"`
	Couplers [][]any            `json:"couplers"`
	Vars     map[string][][]any `json:"vars"`
}

// MessageJSON is one cross-car message.
type MessageJSON struct {
	Tick    uint64          `json:"tick"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Schema  string          `json:"schema"`
	Version string          `json:"version"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Dropped string          `json:"dropped,omitempty"`
}

// exportJSON writes the session trace to a (gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	name := strings.ReplaceAll(b.session.Name, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	if name == "" {
		name = "session"
	}
	timestamp := b.session.StartTime.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", name, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() Export {
	export := Export{
		FormatVersion: FormatVersion,
		Version:       b.session.Version,
		SessionID:     b.session.ID,
		Name:          b.session.Name,
		Author:        b.session.Author,
		StartTime:     b.session.StartTime,
		DeltaTime:     b.session.DeltaTime,
		Cars:          make([]CarJSON, 0, len(b.cars)),
		Events:        make([][]any, 0, len(b.events)),
		Messages:      make([]MessageJSON, 0, len(b.messages)),
	}

	var endTick uint64
	seen := func(tick uint64) {
		if tick > endTick {
			endTick = tick
		}
	}

	ids := make([]core.CarID, 0, len(b.cars))
	for id := range b.cars {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		rec := b.cars[id]
		car := CarJSON{
			ID:       rec.Car.ID,
			Name:     rec.Car.Name,
			Coupler:  rec.Car.Coupler,
			Station:  rec.Car.Station,
			JoinTick: rec.Car.JoinTick,
			Couplers: make([][]any, 0, len(rec.Samples)),
			Vars:     make(map[string][][]any),
		}
		for _, s := range rec.Samples {
			car.Couplers = append(car.Couplers, []any{
				s.Tick,
				s.Endpoint.Side.String(),
				s.Pos,
				s.Speed,
				uint8(s.State),
				boolToInt(s.Linked),
				boolToInt(s.Bag),
			})
			seen(s.Tick)
		}
		for _, v := range rec.Vars {
			car.Vars[v.Name] = append(car.Vars[v.Name], []any{v.Tick, v.Value})
			seen(v.Tick)
		}
		export.Cars = append(export.Cars, car)
	}

	// Format: [tick, kind, endpoint, peer, from, to]
	for _, e := range b.events {
		peer := ""
		if e.Peer != nil {
			peer = e.Peer.String()
		}
		export.Events = append(export.Events, []any{
			e.Tick,
			e.Kind,
			e.Endpoint.String(),
			peer,
			e.From.String(),
			e.To.String(),
		})
		seen(e.Tick)
	}

	for _, m := range b.messages {
		export.Messages = append(export.Messages, MessageJSON{
			Tick:    m.Tick,
			From:    m.From.String(),
			To:      m.To.String(),
			Schema:  m.Schema,
			Version: m.Version,
			Payload: m.Payload,
			Dropped: m.Dropped,
		})
		seen(m.Tick)
	}

	export.EndTick = endTick
	return export
}

func writeJSON(path string, data Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
