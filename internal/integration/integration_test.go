package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"competition-service/internal/app"
	"competition-service/internal/domain"
	pgstore "competition-service/internal/infra/postgres"
	pgmigrations "competition-service/internal/infra/postgres/migrations"
	infraredis "competition-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

var windowStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type stack struct {
	db             *bun.DB
	participations *pgstore.ParticipationStore
	activity       *pgstore.ActivityLogStore
	questions      *infraredis.QuestionRepository
	redis          *goredis.Client
}

func setup(t *testing.T, ctx context.Context) *stack {
	t.Helper()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	db := migrateDB(t, ctx, pgURL)
	t.Cleanup(func() { _ = db.Close() })

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	loader := pgstore.NewQuestionLoader(pool)
	if err := loader.ReplaceQuestions(ctx, sampleQuestions()); err != nil {
		t.Fatalf("seed questions: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	return &stack{
		db:             db,
		participations: pgstore.NewParticipationStore(db),
		activity:       pgstore.NewActivityLogStore(db),
		questions:      infraredis.NewQuestionRepository(redisClient, loader, 5*time.Minute),
		redis:          redisClient,
	}
}

func (s *stack) service(now func() time.Time, locker app.Locker) *app.CompetitionService {
	opts := []app.Option{app.WithClock(now)}
	if locker != nil {
		opts = append(opts, app.WithLocker(locker))
	}
	return app.NewCompetitionService(app.Settings{
		Window:                  domain.Window{Start: windowStart, EntranceDuration: 15 * time.Minute, Length: time.Hour},
		TrustClientWarningCount: true,
	}, s.participations, s.activity, s.questions, opts...)
}

func TestCompetitionEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := setup(t, ctx)

	now := windowStart.Add(time.Minute)
	svc := s.service(func() time.Time { return now }, infraredis.NewLocker(s.redis, 5*time.Second))

	joined, err := svc.Join(ctx, "u1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(joined.Questions) != 2 || joined.RemainingSeconds != 59*60 {
		t.Fatalf("unexpected join result %+v", joined)
	}

	for _, answer := range []string{"3", "4"} {
		if _, err := svc.Submit(ctx, "u1", "q1", answer); err != nil {
			t.Fatalf("submit %s: %v", answer, err)
		}
	}

	now = windowStart.Add(5 * time.Minute)
	ack, err := svc.LogActivity(ctx, "u1", app.ActivityReport{Type: domain.ActivityTabSwitch, WarningCount: 4})
	if err != nil || !ack.AutoSubmitted {
		t.Fatalf("expected auto-submission, got %+v err=%v", ack, err)
	}
	n, err := s.activity.CountForParticipation(ctx, joined.ParticipationID)
	if err != nil || n != 1 {
		t.Fatalf("expected one linked activity row, got %d err=%v", n, err)
	}
	logged, err := s.activity.ForUser(ctx, "u1")
	if err != nil || len(logged) != 1 {
		t.Fatalf("expected one activity row for u1, got %d err=%v", len(logged), err)
	}
	if logged[0].Type != domain.ActivityTabSwitch || logged[0].WarningCount != 4 || logged[0].ParticipationID == nil {
		t.Fatalf("unexpected activity row %+v", logged[0])
	}

	results, err := svc.Results(ctx, "u1")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if results.Status != domain.StatusCompleted || results.UserAnswers[0].YourAnswer != "4" || results.TimeSpentMinutes != 4 {
		t.Fatalf("unexpected results %+v", results)
	}

	if _, err := svc.Join(ctx, "u1"); !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("expected ErrAlreadyAttempted, got %v", err)
	}
}

func TestConcurrentJoinRejectedByUniqueConstraint(t *testing.T) {
	ctx := context.Background()
	s := setup(t, ctx)

	// No locker: the unique index alone must settle the race.
	svc := s.service(func() time.Time { return windowStart.Add(time.Minute) }, nil)

	const attempts = 10
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Join(ctx, "racer")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrAlreadyActive):
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one winner, got %d", ok)
	}

	count, err := s.db.NewSelect().Table("participations").Where("user_id = ?", "racer").Count(ctx)
	if err != nil || count != 1 {
		t.Fatalf("expected one row, got %d err=%v", count, err)
	}
}

func TestStaleSaveIsRejected(t *testing.T) {
	ctx := context.Background()
	s := setup(t, ctx)

	svc := s.service(func() time.Time { return windowStart.Add(time.Minute) }, nil)
	if _, err := svc.Join(ctx, "u1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	a, _ := s.participations.FindActive(ctx, "u1")
	b, _ := s.participations.FindActive(ctx, "u1")
	a.Notes = "first"
	if err := s.participations.Save(ctx, a); err != nil {
		t.Fatalf("save a: %v", err)
	}
	b.Notes = "second"
	if err := s.participations.Save(ctx, b); !errors.Is(err, domain.ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate, got %v", err)
	}

	if err := s.participations.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if p, _ := s.participations.FindActiveOrFinished(ctx, "u1"); p != nil {
		t.Fatalf("expected no participation after reset")
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "competition", "POSTGRES_PASSWORD": "competitionpass", "POSTGRES_DB": "competitiondb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://competition:competitionpass@%s:%s/competitiondb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Text: "2 + 2?", Type: domain.QuestionMCQ, Options: []string{"3", "4"}, CorrectAnswer: "4", Points: 1},
		{ID: "q2", Text: "Name a Go keyword", Type: domain.QuestionText, CorrectAnswer: "func", Points: 2},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
