package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vietscribe-go/internal/app/pipeline"
	platformerrors "vietscribe-go/internal/platform/errors"
	platformlogging "vietscribe-go/internal/platform/logging"
	httptransport "vietscribe-go/internal/transport/http"
	"vietscribe-go/internal/transport/http/health"
	"vietscribe-go/internal/transport/http/transcriptions"
	"vietscribe-go/internal/transport/ws"
)

const shutdownTimeout = 15 * time.Second

// Run assembles the application and serves HTTP until ctx ends or the
// process receives SIGINT/SIGTERM.
func Run(ctx context.Context, opts Options) error {
	app, err := New(ctx, opts)
	if err != nil {
		return err
	}
	defer app.Close()
	return Serve(ctx, app)
}

// Serve runs the job queue and HTTP server for app.
func Serve(ctx context.Context, app *App) error {
	if app == nil || app.Service == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "bootstrap.serve", "application not initialised")
	}
	if app.Repo == nil {
		return platformerrors.New(platformerrors.KindConfig, "bootstrap.serve", "serve mode requires storage to be enabled")
	}
	logger := app.Logger

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	jobs := pipeline.NewJobs(app.Service, app.Config.Queue.Workers, app.Config.Queue.MaxRetries)
	jobs.Start(groupCtx)
	group.Go(func() error {
		<-groupCtx.Done()
		jobs.Stop()
		logger.InfoTag("PIPELINE", "job queue stopped")
		return nil
	})

	if err := startHTTPServer(app, jobs, group, groupCtx); err != nil {
		cancel()
		_ = group.Wait()
		return err
	}

	return waitForShutdown(signalCtx, cancel, logger, group)
}

func startHTTPServer(app *App, jobs *pipeline.Jobs, g *errgroup.Group, groupCtx context.Context) error {
	cfg := app.Config
	logger := app.Logger

	router, err := httptransport.Build(httptransport.Options{Config: cfg, Logger: logger})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport, "http:build-router", "failed to build router", err)
	}

	feeds := ws.NewRouter(app.Hub, logger, ws.RouterOptions{})
	transcriptionService, err := transcriptions.NewService(cfg, jobs, app.Repo, feeds, logger)
	if err != nil {
		return err
	}
	transcriptionService.Register(groupCtx, router.API)
	health.NewService(jobs, string(app.Recognizer.Backend())).Register(groupCtx, router.API)

	addr := net.JoinHostPort(cfg.Server.IP, strconv.Itoa(cfg.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "listening on http://%s", addr)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "server stopped")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return platformerrors.Wrap(platformerrors.KindTransport, "http:listen", fmt.Sprintf("failed to listen on %s", addr), err)
		}
		return nil
	})
	return nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		// A service failed before any signal arrived.
		return err
	case <-ctx.Done():
	}

	logger.InfoTag("BOOT", "shutting down: %v", context.Cause(ctx))
	cancel()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("BOOT", "shutdown finished with error: %v", err)
			return err
		}
		logger.InfoTag("BOOT", "all services stopped")
		return nil
	case <-time.After(shutdownTimeout):
		logger.ErrorTag("BOOT", "shutdown timed out")
		return platformerrors.New(platformerrors.KindBootstrap, "bootstrap.shutdown", "shutdown timed out")
	}
}
