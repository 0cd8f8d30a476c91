// Command ccadmin runs operator tasks against the coursecred store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/yigit/coursecred/internal/bootstrap"
	"github.com/yigit/coursecred/internal/config"
	"github.com/yigit/coursecred/internal/db"
	"github.com/yigit/coursecred/internal/pkg/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("ccadmin failed")
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ccadmin",
		Usage: "coursecred operator tasks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   bootstrap.DefaultConfigPath,
				EnvVars: []string{"CONFIG_PATH"},
				Usage:   "configuration file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "apply pending SQL migrations",
				Action: migrate,
			},
			{
				Name:  "backfill-certificates",
				Usage: "issue certificates for completed enrollments that have none",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 500, Usage: "maximum enrollments to process"},
				},
				Action: backfillCertificates,
			},
			{
				Name:   "recalculate-progress",
				Usage:  "recompute every enrollment's progress from its module records",
				Action: recalculateProgress,
			},
			{
				Name:  "token",
				Usage: "mint an access token for local testing",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "user", Required: true, Usage: "user id"},
					&cli.BoolFlag{Name: "admin", Usage: "mark the token as an administrator"},
				},
				Action: mintToken,
			},
		},
	}
}

// environment is the loaded configuration plus an open pool, if any.
type environment struct {
	cfg  *config.Config
	lgr  zerolog.Logger
	pool *pgxpool.Pool
}

func (e *environment) close() {
	if e.pool != nil {
		e.pool.Close()
	}
}

func load(c *cli.Context, connect bool) (*environment, error) {
	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger(c.String("config"))
	if err != nil {
		return nil, err
	}
	env := &environment{cfg: cfg, lgr: lgr}
	if !connect {
		return env, nil
	}
	if cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("this command needs the postgres driver, configured driver is %q", cfg.Database.Driver)
	}
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		return nil, err
	}
	env.pool = database.Pool
	return env, nil
}

func migrate(c *cli.Context) error {
	env, err := load(c, true)
	if err != nil {
		return err
	}
	defer env.close()

	applied, err := bootstrap.RunMigrations(c.Context, env.pool, env.cfg.Database.MigrationsPath, env.lgr)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "applied %d migration(s)\n", applied)
	return nil
}

func backfillCertificates(c *cli.Context) error {
	limit := c.Int("limit")
	if limit <= 0 {
		return errors.New("--limit must be positive")
	}

	env, err := load(c, true)
	if err != nil {
		return err
	}
	defer env.close()

	svc, err := bootstrap.BuildServices(env.cfg, env.pool, env.lgr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, time.Hour)
	defer cancel()
	result, err := svc.CertificateService.BackfillCompleted(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "scanned %d, issued %d, failed %d\n", result.Scanned, result.Issued, result.Failed)
	if result.Failed > 0 {
		return cli.Exit("some certificates could not be issued, see the log", 2)
	}
	return nil
}

func recalculateProgress(c *cli.Context) error {
	env, err := load(c, true)
	if err != nil {
		return err
	}
	defer env.close()

	svc, err := bootstrap.BuildServices(env.cfg, env.pool, env.lgr)
	if err != nil {
		return err
	}

	changed, err := svc.EnrollmentService.RecalculateAll(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "updated %d enrollment(s)\n", changed)
	return nil
}

func mintToken(c *cli.Context) error {
	userID := c.Int64("user")
	if userID <= 0 {
		return errors.New("--user must be a positive id")
	}

	env, err := load(c, false)
	if err != nil {
		return err
	}

	svc, err := bootstrap.BuildServices(env.cfg, nil, env.lgr)
	if err != nil {
		return err
	}
	token, expiresIn, err := svc.JWTService.GenerateToken(userID, c.Bool("admin"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	env.lgr.Info().Int64("userID", userID).Int("expiresIn", expiresIn).Msg("Token minted")
	return nil
}
