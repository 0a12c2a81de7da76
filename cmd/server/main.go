package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gym-manager/internal/auth"
	"gym-manager/internal/billing"
	"gym-manager/internal/config"
	"gym-manager/internal/gym"
	"gym-manager/internal/handlers"
	"gym-manager/internal/jobs"
	"gym-manager/internal/logging"
	"gym-manager/internal/metrics"
	"gym-manager/internal/storage"
	"gym-manager/internal/subscription"
	"gym-manager/web"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("GYM_CONFIG"), "Path to YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	app, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if app.jobs != nil {
		app.jobs.Stop(shutdownCtx)
	}
	return srv.Shutdown(shutdownCtx)
}

// app is the wired server with everything that needs closing.
type app struct {
	db      *storage.DB
	jobs    *jobs.Scheduler
	handler http.Handler
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	db, err := storage.NewDB(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a := &app{db: db}

	var docs gym.DocumentStore = db
	if cfg.Storage.GymBackend == "file" {
		fileStore, err := storage.NewFileStore(cfg.Storage.GymDataDir)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to open gym data dir: %w", err)
		}
		docs = fileStore
	}
	gymSvc := gym.NewService(docs, logger.Named("gym"))

	opts := subscription.DefaultOptions()
	opts.AdminEmails = cfg.Admin.Emails
	opts.RenewalDays = cfg.Billing.RenewalDays
	opts.CardAmount = cfg.Billing.CardAmount
	opts.CardMethod = cfg.Billing.CardMethod
	opts.ManualAmount = cfg.Billing.ManualAmount
	opts.ManualMethod = cfg.Billing.ManualMethod
	opts.DataDir = cfg.Storage.GymDataDir
	subs := subscription.NewService(db, opts, logger.Named("subscription"))

	if err := bootstrap(subs, cfg.Admin, logger); err != nil {
		a.close()
		return nil, err
	}

	var provider billing.Provider = billing.Disabled{}
	if cfg.Billing.StripeSecretKey != "" {
		provider = billing.NewStripe(billing.StripeConfig{
			SecretKey:   cfg.Billing.StripeSecretKey,
			Currency:    cfg.Billing.Currency,
			ProductName: cfg.Billing.ProductName,
			Amount:      cfg.Billing.CardAmount,
		}, logger.Named("billing"))
	} else {
		logger.Info("stripe key not set, card payments disabled")
	}

	var google auth.TokenVerifier
	if cfg.Google.ClientID != "" {
		google = auth.NewGoogleVerifier(cfg.Google.ClientID)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	h, err := handlers.NewHandlers(handlers.Deps{
		DB:             db,
		Gym:            gymSvc,
		Subscriptions:  subs,
		Billing:        provider,
		Google:         google,
		GoogleClientID: cfg.Google.ClientID,
		Metrics:        m,
		Logger:         logger.Named("http"),
		Templates:      web.Templates(),
		UploadDir:      cfg.Storage.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		SecureCookie:   cfg.Server.SecureCookie,
		BaseURL:        cfg.Server.BaseURL,
		SessionSecret:  secretKey(cfg.Server.SessionSecret),
		LoginLimiter:   handlers.NewLoginLimiter(cfg.Server.LoginRate, cfg.Server.LoginBurst),
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to set up handlers: %w", err)
	}

	if cfg.Jobs.Enabled {
		a.jobs, err = jobs.New(jobs.Config{
			SessionCleanup: cfg.Jobs.SessionCleanup,
			ExpiryReport:   cfg.Jobs.ExpiryReport,
			ExpiryDays:     cfg.Jobs.ExpiryDays,
		}, db, subs, logger.Named("jobs"))
		if err != nil {
			a.close()
			return nil, err
		}
		a.jobs.Start()
	}

	a.handler = setupRouter(h, routerOptions{
		Metrics: m,
		Logger:  logger.Named("http"),
		CSRFKey: secretKey(cfg.Server.CSRFKey),
		Secure:  cfg.Server.SecureCookie,
	})
	return a, nil
}

// bootstrap grants configured admin roles and creates the bootstrap admin.
func bootstrap(subs *subscription.Service, cfg config.AdminConfig, logger *zap.Logger) error {
	if err := subs.SeedAdmins(); err != nil {
		return err
	}
	if cfg.BootstrapUser == "" || cfg.BootstrapPassword == "" {
		return nil
	}
	_, err := subs.CreateAdmin(cfg.BootstrapUser, cfg.BootstrapPassword)
	if errors.Is(err, subscription.ErrUserExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	logger.Info("bootstrap admin created", zap.String("username", cfg.BootstrapUser))
	return nil
}

// secretKey derives a 32 byte key from a configured secret, or returns a
// random one when the secret is empty.
func secretKey(secret string) []byte {
	if secret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(err)
		}
		return key
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}
