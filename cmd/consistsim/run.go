package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tramsim/consist/internal/api"
	"github.com/tramsim/consist/internal/config"
	"github.com/tramsim/consist/internal/scenario"
	"github.com/tramsim/consist/internal/storage"
	"github.com/tramsim/consist/pkg/core"
)

func newRunCommand(_ *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario file and print its trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			res, err := runScenario(a, sc)
			if err != nil {
				return err
			}

			if output != "" {
				return os.WriteFile(output, []byte(res.String()), 0644)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), res.String())
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the trace to a file instead of stdout")
	return cmd
}

// runScenario records one scenario run as its own session in the app's
// storage backend.
func runScenario(a *app, sc *scenario.Scenario) (*scenario.Result, error) {
	s := &core.Session{
		ID:        uuid.NewString(),
		Name:      sc.Name,
		StartTime: time.Now(),
		DeltaTime: sc.DeltaTime,
		Version:   version,
	}
	if err := a.backend.StartSession(s); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	for _, entry := range sc.Cars {
		car := &core.Car{ID: entry.ID, Name: entry.Name, Coupler: entry.Coupler, Station: entry.Station, SessionID: s.ID}
		if car.Coupler == "" {
			car.Coupler = core.CouplerHand
		}
		if err := a.backend.RegisterCar(car); err != nil {
			a.logger.Warn("Failed to register car", "car", entry.ID, "error", err)
		}
	}

	res, runErr := scenario.Run(sc, scenario.Options{
		Logger:    a.logger,
		Recorder:  a.backend,
		Configure: config.VehicleConfig,
		Start:     s.StartTime,
	})

	if err := a.backend.EndSession(); err != nil {
		a.logger.Error("Failed to end session", "error", err)
		return res, runErr
	}
	e, ok := a.backend.(storage.Exporter)
	if !ok || e.ExportedFilePath() == "" {
		return res, runErr
	}
	path := e.ExportedFilePath()
	a.logger.Info("Trace exported", "path", path)

	if a.uploader != nil && runErr == nil {
		meta := api.TraceMetadata{
			SessionID:   s.ID,
			SessionName: s.Name,
			Cars:        len(sc.Cars),
			Ticks:       int(res.Snapshot.Tick),
			Duration:    float64(res.Snapshot.Tick) * float64(sc.DeltaTime),
			Tag:         config.GetAPIConfig().Tag,
		}
		if err := a.uploader.Upload(path, meta); err != nil {
			a.logger.Error("Failed to upload trace", "path", path, "error", err)
		}
	}
	return res, runErr
}
