// Command whichsocial marks the sign-in option a user last chose on a site.
//
// Usage:
//
//	whichsocial -scan page.html -url https://example.com/login   # offline scan, JSON lines on stdout
//	whichsocial -watch https://example.com/login                 # run the engine in Chrome
//	whichsocial -serve :8089                                     # serve the settings store over HTTP
//	whichsocial -clear example.com                               # forget the site selection
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/whichsocial/annotator"
	"github.com/hazyhaar/whichsocial/dbopen"
	"github.com/hazyhaar/whichsocial/guard"
	"github.com/hazyhaar/whichsocial/internal/config"
	"github.com/hazyhaar/whichsocial/livepage"
	"github.com/hazyhaar/whichsocial/sqltrace"
	"github.com/hazyhaar/whichsocial/store"
)

func main() {
	configPath := flag.String("config", "", "path to whichsocial.yaml config file")
	scanFile := flag.String("scan", "", "scan an HTML file offline and print the candidates")
	pageURL := flag.String("url", "", "page URL of the -scan file")
	providers := flag.String("providers", "", "comma-separated vocabulary for -scan (default: first-run list)")
	selected := flag.String("selected", "", "provider last used on the -scan site")
	watchURL := flag.String("watch", "", "open a URL in Chrome and run the engine until interrupted")
	serveAddr := flag.String("serve", "", "serve the settings store on this address")
	clearHost := flag.String("clear", "", "clear the selection saved for this hostname")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			logger.Error("whichsocial: fatal", "error", err)
			os.Exit(1)
		}
	}

	var err error
	switch {
	case *scanFile != "":
		err = runScan(ctx, logger, cfg, *scanFile, *pageURL, splitList(*providers), *selected)
	case *watchURL != "":
		err = runWatch(ctx, logger, cfg, *watchURL)
	case *serveAddr != "":
		cfg.Server.Addr = *serveAddr
		err = runServe(ctx, logger, cfg)
	case *clearHost != "":
		err = runClear(ctx, logger, cfg, *clearHost)
	default:
		fmt.Fprintln(os.Stderr, "usage: whichsocial -scan <file> -url <url> | -watch <url> | -serve <addr> | -clear <host>")
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("whichsocial: fatal", "error", err)
		os.Exit(1)
	}
}

func runScan(ctx context.Context, logger *slog.Logger, cfg *config.Config, path, pageURL string, providers []string, selected string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	defer f.Close()
	if pageURL == "" {
		pageURL = "file://" + path
	}
	return scanPage(ctx, f, pageURL, providers, selected, cfg.Annotator, os.Stdout, logger)
}

// openStore returns the configured settings store and, for a local
// database, the SQLite handle behind it.
func openStore(cfg *config.Config) (store.Store, *store.SQLite, error) {
	if cfg.Store.Remote != "" {
		return store.NewClient(cfg.Store.Remote, nil), nil, nil
	}
	db, err := openSQLite(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, db, nil
}

func openSQLite(cfg *config.Config) (*store.SQLite, error) {
	var opts []dbopen.Option
	if cfg.Store.TraceSQL {
		opts = append(opts, dbopen.WithDriver(sqltrace.DriverName))
	}
	return store.OpenSQLite(cfg.Store.Path, opts...)
}

func runWatch(ctx context.Context, logger *slog.Logger, cfg *config.Config, pageURL string) error {
	if _, err := guard.ValidatePageURL(pageURL); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	st, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	if err := annotator.InstallDefaults(ctx, st); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	lpCfg := cfg.Browser.LivePage()
	lpCfg.Logger = logger
	mgr := livepage.NewManager(lpCfg)
	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer mgr.Close()

	tab, err := livepage.OpenTab(ctx, mgr, pageURL)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer tab.Close()

	g, ctx := errgroup.WithContext(ctx)
	if db != nil && cfg.Store.WatchInterval > 0 {
		w := store.NewWatcher(db, store.WatchOptions{
			Interval: cfg.Store.WatchInterval,
			Debounce: cfg.Store.WatchInterval / 2,
			Logger:   logger,
		})
		g.Go(func() error {
			w.OnChange(ctx, func() error { return tab.Reload(ctx) })
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("whichsocial: watching", "url", pageURL)
		return livepage.Watch(ctx, tab, st, cfg.Annotator, logger)
	})
	return g.Wait()
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	db, err := openSQLite(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := annotator.InstallDefaults(ctx, db); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           store.Handler(db, logger),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("whichsocial: serving settings", "addr", cfg.Server.Addr, "db", cfg.Store.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("whichsocial: shutdown", "error", err)
	}
	logger.Info("whichsocial: server stopped")
	return nil
}

func runClear(ctx context.Context, logger *slog.Logger, cfg *config.Config, host string) error {
	st, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	prev, ok, err := annotator.Selection(ctx, st, host)
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if err := annotator.ClearSelection(ctx, st, host); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	logger.Info("whichsocial: selection cleared", "host", host, "previous", prev, "had_selection", ok)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
