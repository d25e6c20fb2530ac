package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/porchlist/mailroom/pkg/config"
	"github.com/porchlist/mailroom/pkg/dispatch"
	"github.com/porchlist/mailroom/pkg/email"
	"github.com/porchlist/mailroom/pkg/logger"
	"github.com/porchlist/mailroom/pkg/metrics"
	"github.com/porchlist/mailroom/pkg/pg"
	"github.com/porchlist/mailroom/pkg/redis"
)

type appConfig struct {
	Env             string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	ScheduledCron string `env:"CRON_SCHEDULED_EMAILS" envDefault:"*/5 * * * *"` // due scheduled-email drain
	ReengageCron  string `env:"CRON_REENGAGE" envDefault:"30 14 * * *"`         // daily inactivity scan

	DevMailDir string `env:"DEV_MAIL_DIR" envDefault:"./tmp/outbox"` // where the dev sender drops rendered emails
}

const (
	jobScheduledEmails = "scheduled_emails"
	jobReengage        = "reengage"
)

func main() {
	var appCfg appConfig
	config.MustLoad(&appCfg)

	log := logger.New(logger.WithEnvironment(appCfg.Env, "mailroom"))
	logger.SetAsDefault(log)

	if err := run(appCfg, log); err != nil {
		log.Error("mailroom exited with error", "error", err)
		os.Exit(1)
	}
}

func run(appCfg appConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pgCfg pg.Config
	config.MustLoad(&pgCfg)
	var redisCfg redis.Config
	config.MustLoad(&redisCfg)
	var emailCfg email.Config
	config.MustLoad(&emailCfg)
	var dispatchCfg dispatch.Config
	config.MustLoad(&dispatchCfg)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	sender := newSender(appCfg, emailCfg, log)
	storage := dispatch.NewPGStorage(pool)

	catalog, err := storage.LoadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("load email catalog: %w", err)
	}

	orch, err := dispatch.New(dispatch.Repositories{
		Events:    storage,
		Scheduled: storage,
		Activity:  storage,
		Profiles:  storage,
	}, sender, catalog,
		dispatch.WithConfig(dispatchCfg),
		dispatch.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	m := metrics.New()
	lock := redis.NewRunLock(redisClient, redisCfg.RunLockTTL)

	runScheduled := func(ctx context.Context) error {
		report, err := orch.ProcessScheduledEmails(ctx)
		if report != nil {
			m.ScheduledProcessed.Add(float64(report.Processed))
			m.ScheduledErrors.Add(float64(len(report.Errors)))
			m.EmailsSent.Add(float64(report.Processed))
			m.EmailsFailed.Add(float64(len(report.Errors)))
		}
		return err
	}
	runReengage := func(ctx context.Context) error {
		report, err := orch.ProcessReengageEmails(ctx)
		if report != nil {
			m.ReengageSent.Add(float64(report.Sent))
			m.ReengageSkipped.Add(float64(report.Skipped))
			m.EmailsSent.Add(float64(report.Sent))
			m.EmailsFailed.Add(float64(report.Failed))
		}
		return err
	}

	scheduler := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
	))
	if _, err := scheduler.AddFunc(appCfg.ScheduledCron, func() {
		runJob(ctx, jobScheduledEmails, lock, m, log, runScheduled)
	}); err != nil {
		return fmt.Errorf("register scheduled-emails cron: %w", err)
	}
	if _, err := scheduler.AddFunc(appCfg.ReengageCron, func() {
		runJob(ctx, jobReengage, lock, m, log, runReengage)
	}); err != nil {
		return fmt.Errorf("register reengage cron: %w", err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	healthchecks := map[string]func(context.Context) error{
		"postgres": pg.Healthcheck(pool),
		"redis":    redis.Healthcheck(redisClient),
	}
	srv := &http.Server{
		Addr:    appCfg.HTTPAddr,
		Handler: newRouter(lock, m, log, healthchecks, runScheduled, runReengage),
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "mailroom listening",
			"addr", appCfg.HTTPAddr,
			"scheduled_cron", appCfg.ScheduledCron,
			"reengage_cron", appCfg.ReengageCron)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// newSender selects the delivery client. Development runs without Postmark
// credentials and drops rendered emails on disk instead.
func newSender(appCfg appConfig, emailCfg email.Config, log *slog.Logger) email.Sender {
	if emailCfg.PostmarkServerToken != "" && emailCfg.PostmarkAccountToken != "" {
		return email.MustNewPostmarkSender(emailCfg)
	}
	log.Warn("postmark tokens not set, using filesystem dev sender", "dir", appCfg.DevMailDir)
	return email.NewDevSender(appCfg.DevMailDir)
}

// runJob executes a batch job under the distributed run lock, recording
// duration and skipped runs. A held lock means another replica (or a still
// finishing earlier trigger) owns this cycle.
func runJob(ctx context.Context, name string, lock *redis.RunLock, m *metrics.Metrics, log *slog.Logger, fn func(context.Context) error) {
	release, err := lock.Acquire(ctx, name)
	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			m.JobRunsSkipped.WithLabelValues(name).Inc()
			log.InfoContext(ctx, "job run skipped, lock held elsewhere", "job", name)
			return
		}
		log.ErrorContext(ctx, "job lock acquisition failed", "job", name, "error", err)
		return
	}
	defer func() {
		if err := release(ctx); err != nil {
			log.ErrorContext(ctx, "job lock release failed", "job", name, "error", err)
		}
	}()

	start := time.Now()
	err = fn(ctx)
	m.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		log.ErrorContext(ctx, "job run failed", "job", name, "error", err)
	}
}

// newRouter exposes health, metrics, and manual job triggers. The triggers
// run under the same lock as the cron schedule, so poking one by hand during
// an active cycle is safe.
func newRouter(
	lock *redis.RunLock,
	m *metrics.Metrics,
	log *slog.Logger,
	healthchecks map[string]func(context.Context) error,
	runScheduled, runReengage func(context.Context) error,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		for name, check := range healthchecks {
			if err := check(req.Context()); err != nil {
				http.Error(w, name+" unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Post("/jobs/scheduled-emails/run", func(w http.ResponseWriter, req *http.Request) {
		runJob(req.Context(), jobScheduledEmails, lock, m, log, runScheduled)
		w.WriteHeader(http.StatusAccepted)
	})
	r.Post("/jobs/reengage/run", func(w http.ResponseWriter, req *http.Request) {
		runJob(req.Context(), jobReengage, lock, m, log, runReengage)
		w.WriteHeader(http.StatusAccepted)
	})

	return r
}
