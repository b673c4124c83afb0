package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/httplog/v2"
	"golang.org/x/sync/errgroup"

	myhttp "github.com/shortlyhq/shortly/internal/api/http"
	"github.com/shortlyhq/shortly/internal/auth"
	"github.com/shortlyhq/shortly/internal/config"
	"github.com/shortlyhq/shortly/internal/logging"
	"github.com/shortlyhq/shortly/internal/service"
	storagememory "github.com/shortlyhq/shortly/internal/storage/memory"
	storagepg "github.com/shortlyhq/shortly/internal/storage/postgres"
	"github.com/shortlyhq/shortly/pkg/postgres"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	logger := httplog.NewLogger("shortly", httplog.Options{
		Concise: cfg.Env == config.EnvDev,
	})

	g, ctx := errgroup.WithContext(ctx)

	var urlRepo service.URLRepository

	switch cfg.Storage.Type {
	case config.StoragePostgres:
		db, err := postgres.New(
			ctx,
			cfg.Storage.Postgres.DSN(),
			postgres.WithConnMaxIdleTime(cfg.Storage.Postgres.ConnMaxIdleTime),
			postgres.WithConnMaxLifetime(cfg.Storage.Postgres.ConnMaxLifetime),
			postgres.WithMaxIdleConns(cfg.Storage.Postgres.MaxIdleConns),
			postgres.WithMaxOpenConns(cfg.Storage.Postgres.MaxOpenConns),
		)
		if err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			return db.Close()
		})

		if err := postgres.RunMigrations("file://migrations", cfg.Storage.Postgres.DSN()); err != nil {
			return err
		}

		urlRepo = storagepg.NewURLRepository(db)
	case config.StorageMemory:
		var opts []storagememory.Option
		if cfg.Storage.SnapshotPath != "" {
			opts = append(opts, storagememory.WithSnapshotPath(cfg.Storage.SnapshotPath))
		}

		urlRepo, err = storagememory.NewRepository(opts...)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown storage type: %q", cfg.Storage.Type)
	}

	var events logging.Sink = logging.Nop{}
	if cfg.EventLog.Endpoint != "" {
		opts := []logging.Option{
			logging.WithBufferCap(cfg.EventLog.BufferCap),
			logging.WithLogger(logger.Logger),
		}
		if cfg.Auth.TokenURL != "" {
			tokens := auth.NewClient(cfg.Auth.TokenURL, cfg.Auth.Credentials)
			opts = append(opts, logging.WithTokenProvider(tokens))
		}

		eventLog := logging.NewEventLogger(cfg.EventLog.Endpoint, opts...)
		events = eventLog

		g.Go(func() error {
			<-ctx.Done()
			eventLog.Wait()

			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Best effort only: undelivered events stay in the local buffer.
			_ = eventLog.Flush(flushCtx)
			return nil
		})
	}

	urlSvc := service.NewURLService(urlRepo, events, cfg.ShortCodeLength)

	r := myhttp.NewRouter(logger, urlSvc, cfg.BaseURL)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        r,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	return g.Wait()
}
