package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/stocktrail/stocktrail/internal/app"
)

func main() {
	log := logrus.New()

	cmd := &cli.Command{
		Name:  "stocktrail",
		Usage: "Role-based inventory API with an immutable audit trail",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: ":8080",
				Usage: "HTTP listen address",
			},
			&cli.StringFlag{
				Name:  "db-path",
				Value: "./stocktrail.sqlite",
				Usage: "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "jwt-secret",
				Sources: cli.EnvVars("STOCKTRAIL_JWT_SECRET"),
				Usage:   "HMAC signing secret for session tokens (required)",
			},
			&cli.DurationFlag{
				Name:    "token-ttl",
				Value:   30 * time.Minute,
				Sources: cli.EnvVars("STOCKTRAIL_TOKEN_TTL"),
				Usage:   "Session token lifetime",
			},
			&cli.StringFlag{
				Name:    "bootstrap-admin-email",
				Sources: cli.EnvVars("STOCKTRAIL_BOOTSTRAP_ADMIN_EMAIL"),
				Usage:   "Optional admin account to create at startup",
			},
			&cli.StringFlag{
				Name:    "bootstrap-admin-username",
				Value:   "admin",
				Sources: cli.EnvVars("STOCKTRAIL_BOOTSTRAP_ADMIN_USERNAME"),
				Usage:   "Username for the bootstrap admin",
			},
			&cli.StringFlag{
				Name:    "bootstrap-admin-password",
				Sources: cli.EnvVars("STOCKTRAIL_BOOTSTRAP_ADMIN_PASSWORD"),
				Usage:   "Password for the bootstrap admin",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("STOCKTRAIL_WEBHOOK_URL"),
				Usage:   "Mutation event webhook target URL (enables push delivery)",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("STOCKTRAIL_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound webhook requests",
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Sources: cli.EnvVars("STOCKTRAIL_LOG_JSON"),
				Usage:   "Emit logs as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Bool("log-json") {
				log.SetFormatter(&logrus.JSONFormatter{})
			}

			cfg := app.Config{
				Addr:                   c.String("addr"),
				DBPath:                 c.String("db-path"),
				JWTSecret:              c.String("jwt-secret"),
				TokenTTL:               c.Duration("token-ttl"),
				BootstrapAdminEmail:    c.String("bootstrap-admin-email"),
				BootstrapAdminUsername: c.String("bootstrap-admin-username"),
				BootstrapAdminPassword: c.String("bootstrap-admin-password"),
				WebhookURL:             c.String("webhook-url"),
				WebhookSecret:          c.String("webhook-secret"),
			}

			server, closer, err := app.NewServer(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer func() {
				if closeErr := closer.Close(); closeErr != nil {
					log.WithError(closeErr).Warn("close resources")
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				log.WithField("addr", cfg.Addr).Info("listening")
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case sig := <-sigCh:
				log.WithField("signal", sig.String()).Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
