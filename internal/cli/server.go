package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"sat-daily-quiz/internal/app"
	"sat-daily-quiz/internal/config"
	"sat-daily-quiz/internal/infra/file"
	"sat-daily-quiz/internal/infra/memory"
	"sat-daily-quiz/internal/infra/postgres"
	redisstore "sat-daily-quiz/internal/infra/redis"
	"sat-daily-quiz/internal/infra/sqlite"
	"sat-daily-quiz/internal/logger"
	"sat-daily-quiz/internal/metrics"
	transport "sat-daily-quiz/internal/transport/http"
)

// sessionRetention is how long finished days stay in the local session file.
const sessionRetention = 72 * time.Hour

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// backends holds the optional shared connections; nil members are not configured.
type backends struct {
	redis *redis.Client
	pool  *pgxpool.Pool
	bun   *bun.DB
}

func (b *backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.bun != nil {
		_ = b.bun.Close()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New("sat-daily-quiz", cfg.Log.Level)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b := &backends{}
	defer b.Close()
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" {
		b.pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		b.bun = openBun(cfg)
	}

	questions := newQuestionSource(cfg, b, log)

	sessionStore, closeSessions, err := newSessionStore(ctx, cfg, b, log)
	if err != nil {
		return err
	}
	defer closeSessions()

	lbStore, err := newLeaderboardStore(cfg, b)
	if err != nil {
		return err
	}

	rateWindow := config.TTLDuration(cfg.Leaderboard.RateWindow, app.DefaultRateWindow)
	var limiter app.RateLimiter = memory.NewRateLimiter(cfg.Leaderboard.RateLimit, rateWindow)
	if b.redis != nil {
		limiter = redisstore.NewRateLimiter(b.redis, cfg.Leaderboard.RateLimit, rateWindow)
	}

	m := metrics.New("sat_daily_quiz")
	daily := app.NewDailyQuizService(questions)
	sessions := app.NewSessionManager(daily, sessionStore, log, app.WithSessionObserver(m))
	lbOpts := []app.LeaderboardOption{
		app.WithCapacity(cfg.Leaderboard.Capacity),
		app.WithTopN(cfg.Leaderboard.TopN),
		app.WithLeaderboardObserver(m),
	}
	if len(cfg.Leaderboard.Denylist) > 0 {
		lbOpts = append(lbOpts, app.WithDenylist(cfg.Leaderboard.Denylist))
	}
	leaderboard := app.NewLeaderboardService(lbStore, limiter, log, lbOpts...)
	practice := app.NewPracticeService(questions)

	// Warm the daily set; a broken question bank is reported at boot.
	if set, err := daily.Today(ctx); err != nil {
		log.WithError(err).Warn("daily quiz not available at startup")
	} else {
		log.WithFields(logrus.Fields{"date": set.Date, "questions": len(set.Questions)}).Info("daily quiz ready")
	}

	api := transport.NewAPI(daily, sessions, leaderboard, practice, m, log)
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      api.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting quiz service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newQuestionSource reads the bank from Postgres when configured, else from
// the JSON file, cached in Redis or process memory.
func newQuestionSource(cfg config.Config, b *backends, log *logrus.Entry) app.QuestionSource {
	var loader memory.QuestionLoader = file.NewQuestionLoader(cfg.Questions.Path)
	source := "file"
	if b.pool != nil {
		loader = postgres.NewQuestionLoader(b.pool)
		source = "postgres"
	}
	ttl := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	log.WithFields(logrus.Fields{"source": source, "cache_ttl": ttl.String()}).Info("question bank configured")

	if b.redis != nil {
		return redisstore.NewQuestionRepository(b.redis, loader, ttl)
	}
	return memory.NewQuestionRepository(loader, ttl)
}

func newSessionStore(ctx context.Context, cfg config.Config, b *backends, log *logrus.Entry) (app.SessionStore, func(), error) {
	ttl := config.TTLDuration(cfg.Session.TTL, 48*time.Hour)
	switch cfg.Session.Store {
	case "memory":
		return memory.NewSessionStore(), func() {}, nil
	case "redis":
		if b.redis == nil {
			return nil, nil, fmt.Errorf("session store redis requires redis.addr")
		}
		return redisstore.NewSessionStore(b.redis, ttl), func() {}, nil
	case "sqlite":
		store, err := sqlite.NewSessionStore(cfg.Session.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite session store: %w", err)
		}
		if n, err := store.PurgeBefore(ctx, time.Now().Add(-sessionRetention)); err != nil {
			log.WithError(err).Warn("session purge failed")
		} else if n > 0 {
			log.WithField("purged", n).Info("old sessions purged")
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}

func newLeaderboardStore(cfg config.Config, b *backends) (app.LeaderboardStore, error) {
	switch cfg.Leaderboard.Store {
	case "memory":
		return memory.NewLeaderboardStore(), nil
	case "redis":
		if b.redis == nil {
			return nil, fmt.Errorf("leaderboard store redis requires redis.addr")
		}
		return redisstore.NewLeaderboardStore(b.redis, config.TTLDuration(cfg.Leaderboard.TTL, 30*24*time.Hour)), nil
	case "postgres":
		if b.bun == nil {
			return nil, fmt.Errorf("leaderboard store postgres requires postgres.url")
		}
		return postgres.NewLeaderboardStore(b.bun), nil
	default:
		return nil, fmt.Errorf("unknown leaderboard store %q", cfg.Leaderboard.Store)
	}
}
