// Package bootstrap assembles the application from configuration: logging,
// storage, the recognizer and the pipeline, then runs the HTTP service.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gorm.io/gorm"

	"vietscribe-go/internal/app/pipeline"
	"vietscribe-go/internal/domain/asr"
	"vietscribe-go/internal/domain/enhance"
	"vietscribe-go/internal/domain/eventbus"
	platformconfig "vietscribe-go/internal/platform/config"
	platformerrors "vietscribe-go/internal/platform/errors"
	platformlogging "vietscribe-go/internal/platform/logging"
	platformobservability "vietscribe-go/internal/platform/observability"
	platformstorage "vietscribe-go/internal/platform/storage"
	"vietscribe-go/internal/platform/sysinfo"
	"vietscribe-go/internal/transport/ws"
)

// Options selects what New assembles.
type Options struct {
	// ConfigPath pins the config file; empty searches the default locations.
	ConfigPath string
	// Override adjusts the loaded configuration before validation-dependent
	// components are built.
	Override func(*platformconfig.Config)
	// Console receives console logs; nil means stdout.
	Console io.Writer
	// NoStore skips the database even when storage is enabled.
	NoStore bool
}

// App holds the assembled components. Close releases them in reverse order.
type App struct {
	Config     *platformconfig.Config
	ConfigPath string
	Logger     *platformlogging.Logger
	Recognizer asr.Recognizer
	Service    *pipeline.Service
	Repo       *platformstorage.TranscriptRepository
	Events     *eventbus.AsyncEventBus
	Hub        *ws.Hub

	db                    *gorm.DB
	observabilityShutdown platformobservability.ShutdownFunc
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	opts Options
	app  *App
}

// New runs the init graph. On failure everything built so far is released.
func New(ctx context.Context, opts Options) (*App, error) {
	state := &appState{opts: opts, app: &App{}}
	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		_ = state.app.Close()
		return nil, err
	}
	logBootstrapGraph(steps, state.app.Logger)
	return state.app, nil
}

// Close releases the recognizer, drains events, then closes the database,
// observability and the logger.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Recognizer != nil {
		errs = append(errs, a.Recognizer.Close())
	}
	if a.Hub != nil {
		a.Hub.CloseAll(nil)
	}
	if a.Events != nil {
		a.Events.Stop()
	}
	if a.db != nil {
		errs = append(errs, platformstorage.Close(a.db))
	}
	if a.observabilityShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.observabilityShutdown(ctx))
		cancel()
	}
	if a.Logger != nil {
		errs = append(errs, a.Logger.Close())
	}
	return errors.Join(errs...)
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	for _, step := range steps {
		logger.DebugTag("BOOT", "%s: %s", step.ID, step.Title)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph lists the init steps in execution order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "sysinfo:log-host",
			Title:     "Log host resources",
			DependsOn: []string{"logging:init-provider"},
			Execute:   logHostStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise database",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "events:init-bus",
			Title:     "Initialise event bus and subscribers",
			DependsOn: []string{"logging:init-provider", "storage:init-database"},
			Execute:   initEventsStep,
		},
		{
			ID:        "asr:init-recognizer",
			Title:     "Initialise recognizer backend",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindRecognizer,
			Execute:   initRecognizerStep,
		},
		{
			ID:        "pipeline:init-service",
			Title:     "Initialise transcription pipeline",
			DependsOn: []string{"asr:init-recognizer", "events:init-bus"},
			Execute:   initPipelineStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().WithPath(state.opts.ConfigPath).Load()
	if err != nil {
		return err
	}
	if state.opts.Override != nil {
		state.opts.Override(result.Config)
	}
	state.app.Config = result.Config
	state.app.ConfigPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	cfg := state.app.Config
	logger, err := platformlogging.New(platformlogging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
		Console:  state.opts.Console,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}
	state.app.Logger = logger
	logger.InfoTag("BOOT", "logging ready [%s] config=%s", cfg.Log.Level, state.app.ConfigPath)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	cfg := platformobservability.Config{
		Enabled: state.app.Config.Observability.Enabled || strings.EqualFold(state.app.Config.Log.Level, "debug"),
	}
	shutdown, err := platformobservability.Setup(ctx, cfg, state.app.Logger.Slog())
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.app.observabilityShutdown = shutdown
	return nil
}

func logHostStep(ctx context.Context, state *appState) error {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	snap, err := sysinfo.Collect(probeCtx)
	if err != nil {
		state.app.Logger.WarnTag("BOOT", "host probe incomplete: %v", err)
	}
	sysinfo.Log(state.app.Logger, snap)
	return nil
}

func initDatabaseStep(_ context.Context, state *appState) error {
	cfg := state.app.Config.Storage
	if !cfg.Enabled || state.opts.NoStore {
		state.app.Logger.InfoTag("STORE", "persistence disabled")
		return nil
	}
	db, err := platformstorage.Open(cfg.DSN)
	if err != nil {
		return err
	}
	state.app.db = db
	state.app.Repo = platformstorage.NewTranscriptRepository(db)
	state.app.Logger.InfoTag("STORE", "database ready at %s", cfg.DSN)
	return nil
}

// eventWorkers is one so every subscriber sees a run's events in order.
const eventWorkers = 1

func initEventsStep(_ context.Context, state *appState) error {
	app := state.app
	bus := eventbus.NewAsyncEventBus(eventWorkers, app.Logger)
	bus.Start()
	app.Events = bus

	if err := eventbus.SubscribeLogger(bus, app.Logger); err != nil {
		return err
	}
	if app.Repo != nil {
		if err := platformstorage.SubscribeRecorder(bus, app.Repo, app.Logger); err != nil {
			return err
		}
	}
	app.Hub = ws.NewHub(app.Logger)
	return app.Hub.SubscribeEvents(bus)
}

func initRecognizerStep(ctx context.Context, state *appState) error {
	cfg := state.app.Config.ASR
	rec, err := asr.New(cfg, state.app.Logger)
	if err != nil {
		return err
	}
	if err := rec.Init(ctx); err != nil {
		_ = rec.Close()
		return err
	}
	state.app.Recognizer = rec
	state.app.Logger.InfoTag("ASR", "backend %s ready (model %s)", rec.Backend(), rec.Model())
	return nil
}

func initPipelineStep(_ context.Context, state *appState) error {
	app := state.app
	opts := []pipeline.Option{
		pipeline.WithLogger(app.Logger),
		pipeline.WithPublisher(app.Events.Async()),
	}
	if app.Repo != nil {
		opts = append(opts, pipeline.WithStore(app.Repo))
	}

	ecfg := app.Config.Enhance
	if ecfg.APIKey != "" || ecfg.BaseURL != "" {
		enhancer, err := enhance.New(ecfg, app.Logger)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithEnhancer(enhancer))
	} else if ecfg.Enabled {
		app.Logger.WarnTag("BOOT", "enhancement enabled without an API key; it will be skipped")
	}

	svc, err := pipeline.New(app.Config, app.Recognizer, opts...)
	if err != nil {
		return err
	}
	app.Service = svc
	return nil
}
