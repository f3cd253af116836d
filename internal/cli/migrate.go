package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"sat-daily-quiz/internal/config"
	"sat-daily-quiz/internal/infra/file"
	"sat-daily-quiz/internal/infra/postgres"
	pgmigrations "sat-daily-quiz/internal/infra/postgres/migrations"
	"sat-daily-quiz/internal/logger"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runMigrationsWithConfig(cmd.Context(), cfg)
		},
	}
}

// NewImportCmd copies a question-bank JSON file into Postgres.
func NewImportCmd(configPath *string) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "import-questions",
		Short: "Import a question-bank JSON file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if path != "" {
				cfg.Questions.Path = path
			}
			return importQuestions(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "question-bank JSON file (defaults to questions.path)")
	return cmd
}

func openBun(cfg config.Config) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	db := openBun(cfg)
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}

	log := logger.New("sat-daily-quiz", cfg.Log.Level)
	if group.IsZero() {
		log.Info("no new migrations")
		return nil
	}
	log.WithField("group", group.String()).Info("migrations applied")
	return nil
}

func importQuestions(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	questions, err := file.NewQuestionLoader(cfg.Questions.Path).LoadQuestions(ctx)
	if err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	n, err := postgres.ImportQuestions(ctx, pool, questions)
	if err != nil {
		return err
	}
	logger.New("sat-daily-quiz", cfg.Log.Level).WithFields(logrus.Fields{
		"file":     cfg.Questions.Path,
		"imported": n,
	}).Info("question bank imported")
	return nil
}
