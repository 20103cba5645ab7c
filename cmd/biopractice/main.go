package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/biopractice/internal/auth"
	"github.com/pavelanni/biopractice/internal/bank"
	"github.com/pavelanni/biopractice/internal/exam"
	"github.com/pavelanni/biopractice/internal/handler"
	appI18n "github.com/pavelanni/biopractice/internal/i18n"
	"github.com/pavelanni/biopractice/internal/llm"
	"github.com/pavelanni/biopractice/internal/model"
	"github.com/pavelanni/biopractice/internal/store"
)

const revocationPurgeInterval = time.Hour

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("error reading .env file", "error", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "biopractice",
		Short: "Biology exam practice backend",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), topicsCmd(), usersCmd(), sessionsCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `biopractice --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addStoreFlags registers the database and logging flags shared by every command.
func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.String("db", "biopractice.db", "SQLite path or PostgreSQL connection URL")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("fallback-dir", "fallback", "Directory with <BOARD>.json or <BOARD>.yaml fallback question banks")
	f.Int("max-questions", 20, "Maximum number of questions per request")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Duration("llm-timeout", 60*time.Second, "Timeout for a single LLM request")
	f.Int("llm-retries", 1, "Retries on transient LLM failures")
	f.Bool("skip-llm-check", false, "Do not ping the LLM endpoint at startup")
	f.String("jwt-secret", "", "HMAC secret for signing tokens (required)")
	f.Duration("access-ttl", 5*time.Minute, "Access token lifetime")
	f.Duration("refresh-ttl", 24*time.Hour, "Refresh token lifetime")
	f.String("redis-url", "", "Keep revoked tokens in redis instead of the database (redis://host:port/db)")
	f.StringSlice("cors-origins", []string{"http://localhost:3000"}, "Allowed browser origins")
	f.StringP("lang", "l", "en", "Default language for error messages (en, ru)")
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

	v.SetEnvPrefix("BIOPRACTICE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("biopractice")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/biopractice")
	v.AddConfigPath("/etc/biopractice")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(ctx context.Context, v *viper.Viper) (*store.Store, error) {
	db, err := store.New(ctx, store.Driver(strings.ToLower(v.GetString("db-driver"))), v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	secret := v.GetString("jwt-secret")
	if secret == "" {
		return fmt.Errorf("jwt secret is required: set --jwt-secret flag or BIOPRACTICE_JWT_SECRET env var")
	}

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()
	users, err := db.UserCount(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	var revoker auth.Revoker = db
	if url := v.GetString("redis-url"); url != "" {
		rr, err := auth.NewRedisRevoker(ctx, url)
		if err != nil {
			return err
		}
		defer rr.Close()
		revoker = rr
		slog.Info("using redis for token revocation")
	} else {
		go purgeRevocations(ctx, db)
	}
	tokens := auth.NewTokens(secret, v.GetDuration("access-ttl"), v.GetDuration("refresh-ttl"), revoker)

	llmClient := llm.New(llm.Config{
		BaseURL: v.GetString("llm-url"),
		APIKey:  v.GetString("llm-key"),
		Model:   v.GetString("llm-model"),
		Timeout: v.GetDuration("llm-timeout"),
		Retries: v.GetInt("llm-retries"),
		Backoff: time.Second,
	})
	if !v.GetBool("skip-llm-check") {
		if err := llmClient.Ping(ctx); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	}

	cfg := model.AppConfig{
		FallbackDir:  v.GetString("fallback-dir"),
		CORSOrigins:  v.GetStringSlice("cors-origins"),
		DefaultLang:  lang,
		MaxQuestions: v.GetInt("max-questions"),
	}
	svc := exam.New(db, bank.New(cfg.FallbackDir), llmClient, llmClient, llmClient,
		exam.WithMaxQuestions(cfg.MaxQuestions))
	h := handler.New(svc, auth.NewAccounts(db, tokens), tokens, db, cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("starting server",
		"addr", srv.Addr,
		"db_driver", v.GetString("db-driver"),
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"fallback_dir", cfg.FallbackDir,
		"max_questions", cfg.MaxQuestions,
		"lang", lang,
		"users", users,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// purgeRevocations drops expired token revocations until ctx is done.
func purgeRevocations(ctx context.Context, db *store.Store) {
	t := time.NewTicker(revocationPurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := db.PurgeExpiredRevocations(ctx)
			if err != nil {
				slog.Warn("purge revoked tokens", "error", err)
				continue
			}
			slog.Debug("purged revoked tokens", "count", n)
		}
	}
}
