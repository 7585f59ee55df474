package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hupe1980/gisdb"
	"github.com/hupe1980/gisdb/blobstore"
	"github.com/hupe1980/gisdb/metrics"
)

func runServe(ctx context.Context, e *env, args []string) error {
	cfg := e.cfg
	fs := newFlagSet(e, "serve")
	fs.StringVar(&cfg.DB, "db", cfg.DB, "database path")
	blob := fs.String("blob", "", "serve the named blob from the configured store instead of -db")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.Float64Var(&cfg.RateLimit, "rate", cfg.RateLimit, "requests per second, 0 disables limiting")
	fs.IntVar(&cfg.RateBurst, "burst", cfg.RateBurst, "rate limiter burst")
	storeFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errUsage
	}

	mc := metrics.New()
	opts := append(dbOptions(e), gisdb.WithMetricsCollector(mc))

	var (
		db  *gisdb.DB
		err error
	)
	if *blob != "" {
		db, err = openServedBlob(ctx, cfg, *blob, opts)
	} else {
		db, err = openDB(e, cfg.DB, opts...)
	}
	if err != nil {
		return err
	}
	defer db.Close()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	return serve(ctx, e, ln, newServer(db, e.log, mc, cfg.RateLimit, cfg.RateBurst), cfg.ShutdownTimeout)
}

// openServedBlob opens a database from the configured store. Remote reads go
// through a block cache.
func openServedBlob(ctx context.Context, cfg config, name string, opts []gisdb.Option) (*gisdb.DB, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Store != "local" {
		cs, err := blobstore.NewCachingStore(store, cfg.CacheBlocks, blobstore.DefaultBlockSize)
		if err != nil {
			return nil, err
		}
		store = cs
	}

	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", name, err)
	}
	return gisdb.OpenBlob(ctx, b, opts...)
}

// serve runs srv on ln until ctx is done, then shuts down gracefully.
func serve(ctx context.Context, e *env, ln net.Listener, srv *server, shutdownTimeout time.Duration) error {
	hs := &http.Server{
		Handler:           srv.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- hs.Serve(ln)
	}()
	e.log.InfoContext(ctx, "serving", "addr", ln.Addr().String(), "schema", srv.db.Schema().ID(), "items", srv.db.Size())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	e.log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
