package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/adaptest/internal/cat"
	"github.com/pavelanni/adaptest/internal/handler"
	appI18n "github.com/pavelanni/adaptest/internal/i18n"
	"github.com/pavelanni/adaptest/internal/model"
	"github.com/pavelanni/adaptest/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "adaptest",
		Short: "Computerized adaptive testing server",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `adaptest --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.String("db", "adaptest.db", "SQLite path or Postgres DSN")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP testing server",
		RunE:  runServe,
	}
	defaults := model.DefaultCATConfig()
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSliceP("items", "i", nil, "Item bank JSON files to import on startup (repeatable)")
	f.String("recorder", "sql", "Answer recorder (sql, redis, none)")
	f.String("redis-addr", "localhost:6379", "Redis address for the redis recorder")
	f.String("redis-password", "", "Redis password")
	f.StringP("lang", "l", "en", "Default message language (en, pt)")
	f.IntP("max-questions", "n", defaults.MaxQuestions, "Questions per test (0 = all qualifying items)")
	f.Float64("initial-theta", defaults.InitialTheta, "Prior mean of the ability estimate")
	f.Float64("prior-sd", defaults.PriorSD, "Prior standard deviation of the ability estimate")
	f.Float64("grid-min", defaults.GridMin, "Lower bound of the ability grid")
	f.Float64("grid-max", defaults.GridMax, "Upper bound of the ability grid")
	f.Int("grid-size", defaults.GridSize, "Number of ability grid points")
	f.Bool("require-all-options", defaults.RequireAllOptions, "Only administer items with all four options A-D")
	f.Uint64("seed", 0, "Item shuffle seed (0 = random)")
	f.Duration("session-ttl", 2*time.Hour, "Evict sessions idle for longer than this (0 = never)")
	f.StringSlice("cors-origins", []string{"http://localhost:3000"}, "Allowed CORS origins")
	f.String("admin-password", "", "Admin password for /api/admin (or set ADAPTEST_ADMIN_PASSWORD)")
	addStoreFlags(cmd)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import item bank JSON files into the database",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	addStoreFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded answers as JSON",
		RunE:  runExport,
	}
	cmd.Flags().StringP("output", "o", "-", "Output file path (- for stdout)")
	addStoreFlags(cmd)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ADAPTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("adaptest")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/adaptest")
	v.AddConfigPath("/etc/adaptest")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(v *viper.Viper) (*store.Store, error) {
	db, err := store.New(store.Driver(v.GetString("db-driver")), v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func catConfig(v *viper.Viper) model.CATConfig {
	return model.CATConfig{
		MaxQuestions:      v.GetInt("max-questions"),
		InitialTheta:      v.GetFloat64("initial-theta"),
		PriorSD:           v.GetFloat64("prior-sd"),
		GridMin:           v.GetFloat64("grid-min"),
		GridMax:           v.GetFloat64("grid-max"),
		GridSize:          v.GetInt("grid-size"),
		RequireAllOptions: v.GetBool("require-all-options"),
	}
}

// newRecorder returns the answer recorder named by the recorder setting and a
// cleanup function.
func newRecorder(v *viper.Viper, db *store.Store) (cat.Recorder, func(), error) {
	switch strings.ToLower(v.GetString("recorder")) {
	case "", "sql":
		return db, func() {}, nil
	case "redis":
		client, err := store.NewRedisClient(v.GetString("redis-addr"), v.GetString("redis-password"))
		if err != nil {
			return nil, nil, err
		}
		rec := store.NewRedisRecorder(client)
		return rec, func() { _ = rec.Close() }, nil
	case "none":
		slog.Warn("answer recording disabled")
		return cat.NopRecorder{}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown recorder %q", v.GetString("recorder"))
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := loadItems(db, v.GetStringSlice("items")); err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	count, err := db.ItemCount()
	if err != nil {
		return fmt.Errorf("count items: %w", err)
	}
	if count == 0 {
		slog.Warn("item bank is empty; import items before starting tests")
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	recorder, closeRecorder, err := newRecorder(v, db)
	if err != nil {
		return fmt.Errorf("create recorder: %w", err)
	}
	defer closeRecorder()

	cfg := catConfig(v)
	var rng *rand.Rand
	if seed := v.GetUint64("seed"); seed != 0 {
		rng = cat.NewSeeded(seed)
	}
	engine := cat.New(cfg, cat.NewMemoryRegistry(), recorder, rng)

	h, err := handler.New(engine, db, v.GetString("admin-password"))
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}
	if v.GetString("admin-password") == "" {
		slog.Warn("admin password not set; admin routes disabled")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: v.GetStringSlice("cors-origins"),
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Accept-Language"},
		MaxAge:         300,
	}))
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server",
			"addr", addr,
			"db_driver", v.GetString("db-driver"),
			"recorder", v.GetString("recorder"),
			"lang", lang,
			"items", count,
			"max_questions", cfg.MaxQuestions,
			"initial_theta", cfg.InitialTheta,
			"grid", fmt.Sprintf("[%g, %g] x %d", cfg.GridMin, cfg.GridMax, cfg.GridSize),
			"require_all_options", cfg.RequireAllOptions,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if ttl := v.GetDuration("session-ttl"); ttl > 0 {
		g.Go(func() error {
			return runJanitor(gctx, engine, ttl)
		})
	}

	return g.Wait()
}

// runJanitor evicts idle sessions until ctx is done.
func runJanitor(ctx context.Context, engine *cat.Engine, ttl time.Duration) error {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			engine.EvictIdle(ttl)
		}
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := loadItems(db, args); err != nil {
		return err
	}
	count, err := db.ItemCount()
	if err != nil {
		return fmt.Errorf("count items: %w", err)
	}
	slog.Info("item bank ready", "items", count)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	export, err := db.ExportHistory()
	if err != nil {
		return fmt.Errorf("export history: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

// loadItems imports item bank files, skipping files whose content hash
// matches the last import.
func loadItems(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("items file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Info("items file changed since last import, updating", "path", path)
		}

		var items []model.ItemImport
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		n, err := db.ImportItems(items)
		if err != nil {
			return fmt.Errorf("import items from %s: %w", path, err)
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported items", "path", path, "count", n)
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
