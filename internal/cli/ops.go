package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"competition-service/internal/app"
	"competition-service/internal/auth"
	"competition-service/internal/config"
	"competition-service/internal/domain"
	pgstore "competition-service/internal/infra/postgres"
	"competition-service/internal/logger"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errSweepStartTime = errors.New("sweep needs competition.start_time (or COMPETITION_START_TIME)")

// NewSweepCmd finishes every active participation whose time has run out.
// Nothing runs it automatically.
func NewSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Finish active participations whose time limit has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			// without a fixed start the window would open at this process's start,
			// not the server's
			if cfg.Competition.StartTime == "" {
				return errSweepStartTime
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			rt, err := buildRuntime(ctx, cfg, log, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			n, err := rt.service.FinishExpired(ctx)
			if err != nil {
				return err
			}
			log.Info("sweep complete", zap.Int("finished", n))
			fmt.Fprintf(cmd.OutOrStdout(), "finished %d participation(s)\n", n)
			return nil
		},
	}
}

// NewTokenCmd mints a bearer token for the configured secret.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user or admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			var issuer app.TokenIssuer
			issuer, err = auth.NewJWT(cfg.Auth.JWTSecret)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = config.TTLDuration(cfg.Auth.TokenTTL, 12*time.Hour)
			}
			token, err := issuer.Issue(domain.Identity{UserID: userID, Role: domain.Role(role)}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleUser), "user or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// NewSeedQuestionsCmd replaces the Postgres question bank with questions.file.
func NewSeedQuestionsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-questions",
		Short: "Load questions.file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" || cfg.Questions.File == "" {
				return fmt.Errorf("seed-questions needs postgres.url and questions.file")
			}
			questions, err := config.LoadQuestions(cfg.Questions.File)
			if err != nil {
				return err
			}
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pgstore.NewQuestionLoader(pool).ReplaceQuestions(ctx, questions); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d question(s)\n", len(questions))
			return nil
		},
	}
}
