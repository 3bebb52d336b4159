// Package server wires the analysis pipeline, integrations and HTTP API
// into a running service.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Reefey/Backend-sub000/internal/annotate"
	"github.com/Reefey/Backend-sub000/internal/api"
	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/datastore"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/imageprovider"
	"github.com/Reefey/Backend-sub000/internal/logging"
	"github.com/Reefey/Backend-sub000/internal/mqtt"
	"github.com/Reefey/Backend-sub000/internal/notification"
	"github.com/Reefey/Backend-sub000/internal/objectstore"
	"github.com/Reefey/Backend-sub000/internal/observability"
	"github.com/Reefey/Backend-sub000/internal/pipeline"
	"github.com/Reefey/Backend-sub000/internal/quota"
	"github.com/Reefey/Backend-sub000/internal/reconciler"
	"github.com/Reefey/Backend-sub000/internal/suncalc"
	"github.com/Reefey/Backend-sub000/internal/telemetry"
	"github.com/Reefey/Backend-sub000/internal/vision"
)

const shutdownTimeout = 10 * time.Second

var serverLogger *slog.Logger

func init() {
	var err error
	serverLogger, _, err = logging.NewFileLogger("logs/server.log", "server", slog.LevelInfo)
	if err != nil {
		serverLogger = slog.New(slog.NewTextHandler(io.Discard, nil)).With("service", "server")
	}
}

// components holds everything Run builds, so shutdown can drain in order.
type components struct {
	ds           datastore.Interface
	orchestrator *pipeline.Orchestrator
	gate         *quota.Gate
	enricher     *imageprovider.Enricher
	notifier     *notification.Notifier
	publisher    *mqtt.Publisher
	metrics      *observability.Metrics
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM.
func Run(settings *conf.Settings) error {
	if err := telemetry.Init(settings); err != nil {
		return err
	}
	defer telemetry.Flush()

	c, err := build(settings)
	if err != nil {
		return err
	}
	defer c.close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	controller, err := api.New(e, c.ds, settings, c.gate, c.orchestrator, c.metrics)
	if err != nil {
		return err
	}
	defer controller.Shutdown()

	// The local backend stores photos on disk, serve them under /media so
	// the default public URL resolves.
	if settings.ObjectStore.Type == "" || settings.ObjectStore.Type == "local" {
		e.Static("/media", settings.ObjectStore.Local.Path)
	}

	port := settings.WebServer.Port
	if port == "" {
		port = "8080"
	}

	errCh := make(chan error, 1)
	go func() {
		serverLogger.Info("HTTP server starting", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-quit:
		serverLogger.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		serverLogger.Error("HTTP server shutdown failed", "error", err)
	}
	return nil
}

// build constructs the full pipeline stack from settings.
func build(settings *conf.Settings) (*components, error) {
	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	ds := datastore.New(settings)
	if ds == nil {
		return nil, errors.Newf("no database backend enabled in output settings").
			Component("server").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := ds.Open(); err != nil {
		return nil, err
	}
	ds.SetMetrics(m.Datastore)

	store, err := objectstore.New(settings, m.ObjectStore)
	if err != nil {
		_ = ds.Close()
		return nil, err
	}

	visionProvider, err := vision.NewProvider(settings)
	if err != nil {
		_ = ds.Close()
		return nil, err
	}
	visionSvc := vision.NewService(visionProvider, settings, m.Vision)

	var gate *quota.Gate
	if settings.Quota.Enabled {
		gate = quota.NewGate(quota.NewMemoryStore(), &settings.Quota, quota.WithMetrics(m.Quota))
	}

	c := &components{ds: ds, gate: gate, metrics: m}

	engineOpts := []reconciler.Option{reconciler.WithMetrics(m.Reconciler)}

	if settings.Location.Latitude != 0 || settings.Location.Longitude != 0 {
		sc := suncalc.NewSunCalc(settings.Location.Latitude, settings.Location.Longitude)
		engineOpts = append(engineOpts, reconciler.WithDayPeriod(sc.DayPeriod))
		serverLogger.Info("Day period tagging enabled",
			"latitude", settings.Location.Latitude,
			"longitude", settings.Location.Longitude)
	}

	if settings.Integrations.Notification.Enabled {
		notifier, err := notification.NewNotifier(&settings.Integrations.Notification)
		if err != nil {
			serverLogger.Error("Notification setup failed, continuing without", "error", err)
		} else {
			c.notifier = notifier
			engineOpts = append(engineOpts, reconciler.WithNotifier(notifier))
		}
	}

	refProvider, err := imageprovider.NewProvider(&settings.SpeciesImages)
	if err != nil {
		serverLogger.Error("Reference image provider setup failed, continuing without", "error", err)
	} else if refProvider != nil {
		c.enricher = imageprovider.NewEnricher(refProvider, ds, m.ImageProvider)
		engineOpts = append(engineOpts, reconciler.WithImageEnricher(c.enricher))
	}

	engine := reconciler.NewEngine(ds, &settings.Reconciler, engineOpts...)

	pipelineOpts := []pipeline.Option{pipeline.WithMetrics(m.Pipeline)}
	if gate != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithQuotaGate(gate))
	}
	if settings.Annotate.Enabled {
		pipelineOpts = append(pipelineOpts, pipeline.WithRenderer(annotate.NewRenderer(&settings.Annotate, m.Annotate)))
	}

	if settings.Integrations.MQTT.Enabled {
		publisher, err := mqtt.NewPublisher(&settings.Integrations.MQTT, m.MQTT)
		if err != nil {
			serverLogger.Error("MQTT setup failed, continuing without", "error", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := publisher.Connect(ctx); err != nil {
				serverLogger.Error("MQTT connect failed, continuing without", "error", err)
			} else {
				c.publisher = publisher
				pipelineOpts = append(pipelineOpts, pipeline.WithPublisher(publisher))
			}
			cancel()
		}
	}

	c.orchestrator = pipeline.New(settings, visionSvc, store, engine, pipelineOpts...)
	return c, nil
}

func (c *components) close() {
	if c.enricher != nil {
		c.enricher.Wait()
	}
	if c.notifier != nil {
		c.notifier.Wait()
	}
	if c.publisher != nil {
		c.publisher.Disconnect()
	}
	if c.ds != nil {
		if err := c.ds.Close(); err != nil {
			serverLogger.Error("Datastore close failed", "error", err)
		}
	}
}
