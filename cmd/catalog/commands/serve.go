package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	web "catalog/internal/adapters/http"
	"catalog/internal/adapters/http/perf"
	"catalog/internal/adapters/source"
	"catalog/internal/adapters/storage"
	kv "catalog/internal/adapters/storage/preference"
	"catalog/internal/application/spotlight"
	"catalog/internal/config"
	"catalog/internal/domain/item"
)

var (
	serveAddr string
	serveDB   string
	serveNoDB bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, then :8080)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "SQLite preference database path")
	serveCmd.Flags().BoolVar(&serveNoDB, "no-db", false, "keep preferences in memory only")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves every configured catalog over HTTP.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read(configPath)
		if err != nil {
			log.Fatalf("failed to read config: %v", err)
		}
		if serveAddr != "" {
			cfg.Addr = serveAddr
		}
		if serveDB != "" {
			cfg.DB = serveDB
		}
		return serve(cmd.Context(), cfg)
	},
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", storage.DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(8)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	if err := storage.InitDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	collector := perf.NewCollector(perf.DefaultRingSize)

	var store kv.Store = kv.NewMemoryStore()
	schema := 0
	if !serveNoDB {
		db, err := openDB(cfg.DB)
		if err != nil {
			log.Fatalf("failed to initialize database: %v", err)
		}
		defer db.Close()
		if schema, err = storage.CurrentVersion(db); err != nil {
			log.Fatalf("failed to read schema version: %v", err)
		}
		store = kv.NewSQLiteStore(storage.NewTimedDB(db, collector, cfg.SlowQuery()))
	}

	loader := source.NewCached(source.NewClient(cfg.FetchTimeout(), collector))
	stopCh := make(chan struct{})
	defer close(stopCh)

	rotators := make(map[string]*spotlight.Rotator)
	for _, site := range cfg.Sites {
		if site.ItemKind() != item.KindMember {
			continue
		}
		rotator := spotlight.NewRotator(func(ctx context.Context) ([]item.Item, error) {
			return loader.Load(ctx, site.Source, item.KindMember)
		}, nil)
		rotator.Start(cfg.SpotlightInterval(), stopCh)
		rotators[site.Key] = rotator
	}

	app, err := web.NewMux(&web.Deps{
		Config:   cfg,
		Source:   loader,
		Images:   source.NewImageProbe(cfg.FetchTimeout()),
		Prefs:    store,
		Rotators: rotators,
	}, collector)
	if err != nil {
		log.Fatalf("failed to build handler: %v", err)
	}
	defer app.Close()

	env := cfg.Env
	if env == "" {
		env = "development"
	}
	log.Printf("Catalog %s starting on %s (env=%s, schema=%d, sites=%d)", rootCmd.Version, cfg.Addr, env, schema, len(cfg.Sites))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		slog.Info("server_shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
