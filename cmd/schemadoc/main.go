// Command schemadoc serves the database documentation pipeline: browse
// tables, introspect selections, export workbook documents.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jwkim/schemadoc/internal/config"
	"github.com/jwkim/schemadoc/internal/export"
	"github.com/jwkim/schemadoc/internal/filestore"
	filestorelocal "github.com/jwkim/schemadoc/internal/filestore/local"
	filestoreminio "github.com/jwkim/schemadoc/internal/filestore/minio"
	"github.com/jwkim/schemadoc/internal/logger"
	"github.com/jwkim/schemadoc/internal/metadata"
	metamysql "github.com/jwkim/schemadoc/internal/metadata/mysql"
	metapostgres "github.com/jwkim/schemadoc/internal/metadata/postgres"
	"github.com/jwkim/schemadoc/internal/pipeline"
	"github.com/jwkim/schemadoc/internal/server"
)

func main() {
	configPath := flag.String("config", "schemadoc.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New(logger.DefaultConfig()).Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New(&cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("schemadoc exited")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	src, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	pool := pipeline.NewPool(&pipeline.Config{
		Workers:     cfg.Pipeline.Workers,
		EventBuffer: cfg.Pipeline.EventBuffer,
	}, log)
	defer pool.Close()

	exporter := export.New(pool, store)
	srv := server.New(src, pool, exporter, &server.Config{
		DebounceWindow:  cfg.Pipeline.DebounceWindow,
		RenderChunkSize: cfg.Render.ChunkSize,
	}, log)
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", cfg.Listen).Str("driver", string(cfg.Database.Driver)).Msg("schemadoc listening")

	eg, egctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info().Msg("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// openSource builds the metadata source for the configured driver. A
// source that does not advertise concurrency safety is wrapped once so
// concurrent jobs serialize their queries.
func openSource(ctx context.Context, cfg *config.Config) (metadata.Source, error) {
	var (
		src metadata.Source
		err error
	)
	switch cfg.Database.Driver {
	case metadata.DriverMySQL:
		src, err = metamysql.New(ctx, &cfg.Database)
	default:
		src, err = metapostgres.New(ctx, &cfg.Database)
	}
	if err != nil {
		return nil, err
	}
	if _, ok := src.(metadata.ConcurrencySafe); !ok {
		src = metadata.Serial(src)
	}
	return src, nil
}

func openStore(ctx context.Context, cfg *config.Config) (filestore.Store, error) {
	if cfg.Store.Provider == filestore.ProviderMinIO {
		return filestoreminio.New(ctx, &cfg.Store)
	}
	s := filestorelocal.New(cfg.Store.BaseDir)
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
