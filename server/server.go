package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	v1 "github.com/imrenagi/go-upload-progress/api/v1"
	"github.com/imrenagi/go-upload-progress/config"
	"github.com/imrenagi/go-upload-progress/notify"
	"github.com/imrenagi/go-upload-progress/storage"
	"github.com/imrenagi/go-upload-progress/upload"
)

type Opts struct {
	Config config.Config
}

func New(opts Opts) Server {
	s := Server{
		opts: opts,
	}
	return s
}

type Server struct {
	opts Opts
}

// Run serves until ctx is cancelled, then shuts the HTTP server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.opts.Config
	log.Info().Msg("starting server")

	telemetryShutdownFn, err := SetupTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := telemetryShutdownFn(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry providers")
		}
	}()

	backend, err := storage.Open(ctx, storage.Options{
		Driver:    cfg.Storage.Driver,
		BucketURL: cfg.Storage.BucketURL,
		Bucket:    cfg.Storage.Bucket,
	})
	if err != nil {
		return err
	}
	defer backend.Close()

	if cfg.Storage.Driver == storage.DriverDisk || cfg.Storage.Driver == "" {
		if err := os.MkdirAll(cfg.Upload.StorageRoot, 0755); err != nil {
			return fmt.Errorf("failed to create storage root: %w", err)
		}
	}

	hub := notify.NewHub()
	defer hub.Close()

	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: NewHandler(cfg, backend, hub, upload.NewStore()),
		// ReadHeaderTimeout is necessary here to prevent slowloris attacks.
		// https://www.cloudflare.com/learning/ddos/ddos-attack-tools/slowloris/
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		// Uploads of large files may legitimately take longer than any fixed
		// read or write timeout, so both are off unless configured.
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msgf("Starting http server on %s", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		log.Warn().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown http server gracefully")
			return err
		}
		log.Warn().Msg("http server gracefully stopped")
		return nil
	})
	return g.Wait()
}

// NewHandler builds the router serving the upload API, the progress
// websocket, the web page and metrics.
func NewHandler(cfg config.Config, sinks storage.Factory, hub *notify.Hub, store v1.Storage) http.Handler {
	mux := mux.NewRouter()
	mux.Use(
		otelhttp.NewMiddleware("uploader"),
		LogInterceptor)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/ws", hub).Methods(http.MethodGet)
	mux.Handle("/", otelhttp.WithRouteTag("/", http.HandlerFunc(v1.Web()))).Methods(http.MethodGet)

	v1Controller := v1.NewController(sinks, hub, store,
		v1.WithStorageRoot(cfg.Upload.StorageRoot),
		v1.WithRateLimitInterval(cfg.Upload.RateLimitInterval),
		v1.WithNotificationQueue(cfg.Upload.NotificationQueue))
	// Registered on the top level router: a subrouter answers a method
	// mismatch with 404 instead of 405.
	route := func(method, path string, h http.HandlerFunc) {
		mux.Handle(path, otelhttp.WithRouteTag(path, h)).Methods(method)
	}
	route(http.MethodPost, "/api/v1/upload", v1Controller.FormUpload())
	route(http.MethodPost, "/api/v1/binary", v1Controller.BinaryUpload())
	route(http.MethodGet, "/api/v1/uploads", v1Controller.ListUploads())
	route(http.MethodGet, "/api/v1/uploads/{upload_id}", v1Controller.GetUpload())

	return otelhttp.NewHandler(mux, "/")
}
