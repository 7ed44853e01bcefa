package cli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"competition-service/internal/app"
	"competition-service/internal/config"
	"competition-service/internal/infra/memory"
	pgstore "competition-service/internal/infra/postgres"
	redisstore "competition-service/internal/infra/redis"
	"competition-service/internal/metrics"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"
)

// runtime holds the wired service and the connections it owns.
type runtime struct {
	service *app.CompetitionService
	metrics *metrics.Collector
	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// buildRuntime picks stores by configuration: Postgres when a URL is set,
// Redis for caching and locking when an address is set, memory otherwise.
func buildRuntime(ctx context.Context, cfg config.Config, logger *zap.Logger, collector *metrics.Collector) (*runtime, error) {
	rt := &runtime{metrics: collector}

	window, err := cfg.Window(time.Now())
	if err != nil {
		return nil, err
	}
	if cfg.Competition.StartTime == "" {
		logger.Warn("competition.start_time unset, window opens at process start",
			zap.Time("start", window.Start))
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = redisClient.Close() })
	}

	var (
		pool *pgxpool.Pool
		db   *bun.DB
	)
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		db = openBun(cfg.Postgres.URL)
		rt.closers = append(rt.closers, func() { _ = db.Close() })
	}

	var loader memory.QuestionLoader
	switch {
	case pool != nil:
		loader = pgstore.NewQuestionLoader(pool)
	case cfg.Questions.File != "":
		questions, err := config.LoadQuestions(cfg.Questions.File)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("load question bank: %w", err)
		}
		loader = memory.NewStaticQuestionLoader(questions)
	default:
		rt.Close()
		return nil, fmt.Errorf("no question source: set questions.file or postgres.url")
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 5*time.Minute)
	var questions app.QuestionSource
	if redisClient != nil {
		questions = redisstore.NewQuestionRepository(redisClient, loader, questionTTL)
	} else {
		questions = memory.NewQuestionRepository(loader, questionTTL)
	}

	var (
		participations app.ParticipationStore
		activity       app.ActivityLogStore
	)
	switch {
	case db != nil:
		participations = pgstore.NewParticipationStore(db)
		activity = pgstore.NewActivityLogStore(db)
	case redisClient != nil:
		participations = memory.NewParticipationStore()
		activity = redisstore.NewActivityLogStore(redisClient)
	default:
		participations = memory.NewParticipationStore()
		activity = memory.NewActivityLogStore()
	}

	var locker app.Locker = memory.NewLocker()
	if redisClient != nil {
		locker = redisstore.NewLocker(redisClient, config.TTLDuration(cfg.Redis.LockTTL, 10*time.Second))
	}

	rt.service = app.NewCompetitionService(app.Settings{
		Window:                  window,
		WarningThreshold:        cfg.Competition.WarningThreshold,
		TrustClientWarningCount: cfg.Competition.TrustClientCount(),
		EnforceSubmitDeadline:   cfg.Competition.EnforceSubmitDeadline,
	}, participations, activity, questions,
		app.WithLocker(locker),
		app.WithLogger(logger),
		app.WithMetrics(collector),
	)

	logger.Info("competition configured",
		zap.Time("start", window.Start),
		zap.Time("entrance_deadline", window.EntranceDeadline()),
		zap.Time("absolute_end", window.AbsoluteEnd()),
		zap.Bool("postgres", db != nil),
		zap.Bool("redis", redisClient != nil))
	return rt, nil
}

func openBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
