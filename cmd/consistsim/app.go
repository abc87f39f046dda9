package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"

	"github.com/tramsim/consist/internal/api"
	"github.com/tramsim/consist/internal/cache"
	"github.com/tramsim/consist/internal/config"
	"github.com/tramsim/consist/internal/dispatcher"
	"github.com/tramsim/consist/internal/influx"
	"github.com/tramsim/consist/internal/logging"
	"github.com/tramsim/consist/internal/monitor"
	intOtel "github.com/tramsim/consist/internal/otel"
	"github.com/tramsim/consist/internal/parser"
	"github.com/tramsim/consist/internal/session"
	"github.com/tramsim/consist/internal/storage"
	"github.com/tramsim/consist/internal/worker"
	"github.com/tramsim/consist/pkg/hostapi"
)

const extensionName = "consist"

// app wires the services of one process.
type app struct {
	startTime time.Time

	logFile     *os.File
	otelLogFile *os.File
	graylog     *gelf.Writer

	slogManager  *logging.SlogManager
	logger       *slog.Logger
	otelProvider *intOtel.Provider

	backend    storage.Backend
	uploader   *api.Client
	influx     *influx.Manager
	session    *session.Context
	worker     *worker.Manager
	monitor    *monitor.Service
	dispatcher *dispatcher.Dispatcher
	bridge     *hostapi.Bridge
}

func newApp() (*app, error) {
	a := &app{
		startTime:   time.Now(),
		slogManager: logging.NewSlogManager(),
		session:     session.NewContext(),
	}
	if err := a.setupLogging(); err != nil {
		a.close()
		return nil, err
	}
	if err := a.setupServices(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) setupLogging() error {
	logsDir := config.GetString("logsDir")

	var err error
	a.logFile, err = logging.CreateLogFile(logsDir, extensionName, a.startTime)
	if err != nil {
		return err
	}

	otelCfg := config.GetOTelConfig()
	var otelWriter io.Writer
	if otelCfg.Enabled {
		a.otelLogFile, err = logging.CreateLogFile(logsDir, extensionName+"-otel", a.startTime)
		if err != nil {
			return err
		}
		otelWriter = a.otelLogFile
	}
	a.otelProvider, err = intOtel.New(otelCfg, otelWriter)
	if err != nil {
		return fmt.Errorf("failed to set up otel: %w", err)
	}

	level := config.GetString("logLevel")
	var extra []slog.Handler
	if gl := config.GetGraylogConfig(); gl.Enabled {
		h, w, err := logging.NewGraylogHandler(gl.Address, level)
		if err != nil {
			return err
		}
		a.graylog = w
		extra = append(extra, h)
	}

	a.slogManager.SetContextProvider(a.logContext)
	a.slogManager.Setup(a.logFile, level, a.otelProvider.LoggerProvider(), extra...)
	a.logger = a.slogManager.Logger()
	return nil
}

// logContext adds the running session and tick to every record.
func (a *app) logContext() []slog.Attr {
	if a.session == nil || !a.session.Active() {
		return nil
	}
	attrs := []slog.Attr{slog.String("session", a.session.Get().ID)}
	if a.worker != nil {
		attrs = append(attrs, slog.Int("tick", a.worker.Tick()))
	}
	return attrs
}

func (a *app) setupServices() error {
	storeLogger := zerolog.New(a.logFile).With().Timestamp().Str("component", "storage").Logger()

	backend, err := storage.NewBackend(config.GetStorageConfig(), storage.Dependencies{
		DB:          config.GetDBConfig(),
		Influx:      config.GetInfluxConfig(),
		Logger:      a.logger,
		StoreLogger: storeLogger,
	})
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	a.backend = backend
	a.logger.Info("Storage backend initialized", "type", config.GetStorageConfig().Type)

	// Host-defined metrics go to their own manager so they do not depend on
	// the storage type.
	if ic := config.GetInfluxConfig(); ic.Enabled {
		a.influx = influx.NewManager(storeLogger, ic)
		if err := a.influx.Connect(); err != nil {
			a.logger.Warn("Influx metrics unavailable", "error", err)
			a.influx = nil
		}
	}

	apiCfg := config.GetAPIConfig()
	if apiCfg.ServerURL != "" {
		a.uploader = api.New(apiCfg.ServerURL, apiCfg.APIKey)
		if err := a.uploader.Healthcheck(); err != nil {
			a.logger.Warn("Trace archive not reachable, uploads may fail", "url", apiCfg.ServerURL, "error", err)
		}
	}

	var instruments *intOtel.Instruments
	if a.otelProvider.Enabled() {
		instruments, err = intOtel.NewInstruments(a.otelProvider.Meter(extensionName))
		if err != nil {
			return fmt.Errorf("failed to create instruments: %w", err)
		}
	}

	a.dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(a.logger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	a.worker = worker.NewManager(worker.Dependencies{
		CarCache:      cache.NewCarCache(),
		LogManager:    a.slogManager,
		ParserService: parser.NewParser(a.logger, version),
		Session:       a.session,
		Clock:         hostapi.NewFrameClock(config.GetFloat("sim.deltaTime")),
		Random:        hostapi.NewSeededRandom(uint64(config.GetInt("sim.seed"))),
		Configure:     config.VehicleConfig,
		Influx:        a.influx,
		Instruments:   instruments,
		UploadTag:     apiCfg.Tag,
	}, a.backend)
	if a.uploader != nil {
		a.worker.SetUploader(a.uploader)
	}
	a.worker.RegisterHandlers(a.dispatcher)

	a.monitor = monitor.NewService(monitor.Dependencies{
		LogManager:    a.slogManager,
		Session:       a.session,
		WorkerManager: a.worker,
		OTel:          a.otelProvider,
		StatusDir:     config.GetString("logsDir"),
	})
	a.dispatcher.Register(":STATUS:", a.monitor.HandleStatus)

	a.bridge = hostapi.NewBridge(a.dispatcher, version)
	return nil
}

// close ends a running session and releases everything in reverse order.
func (a *app) close() error {
	var errs []error
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.session.Active() && a.bridge != nil {
		a.bridge.Call(":SESSION:END:")
	}
	if a.backend != nil {
		errs = append(errs, a.backend.Close())
	}
	if a.influx != nil {
		errs = append(errs, a.influx.Close())
	}
	if a.otelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.slogManager.Flush(ctx), a.otelProvider.Shutdown(ctx))
		cancel()
	}
	if a.graylog != nil {
		errs = append(errs, a.graylog.Close())
	}
	for _, f := range []*os.File{a.otelLogFile, a.logFile} {
		if f != nil {
			errs = append(errs, f.Close())
		}
	}
	return errors.Join(errs...)
}
