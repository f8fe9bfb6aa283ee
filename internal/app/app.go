package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stocktrail/stocktrail/internal/adapters/events"
	"github.com/stocktrail/stocktrail/internal/adapters/httpapi"
	sqliteadapter "github.com/stocktrail/stocktrail/internal/adapters/sqlite"
	"github.com/stocktrail/stocktrail/internal/adapters/sqlite/gormsqlite"
	"github.com/stocktrail/stocktrail/internal/core/domain"
	"github.com/stocktrail/stocktrail/internal/core/ports"
	"github.com/stocktrail/stocktrail/internal/core/usecase"
	"github.com/stocktrail/stocktrail/migrations"
)

type Config struct {
	Addr                   string
	DBPath                 string
	JWTSecret              string
	TokenTTL               time.Duration
	BootstrapAdminEmail    string
	BootstrapAdminUsername string
	BootstrapAdminPassword string
	WebhookURL             string
	WebhookSecret          string
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewServer(ctx context.Context, cfg Config, log *logrus.Logger) (*http.Server, io.Closer, error) {
	if cfg.JWTSecret == "" {
		return nil, nil, errors.New("jwt secret must be configured")
	}

	db, err := gormsqlite.Open(cfg.DBPath, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migrateCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	userRepo := sqliteadapter.NewUserRepository(db)
	inventoryStore := sqliteadapter.NewInventoryStore(db)
	auditRepo := sqliteadapter.NewAuditTrailRepository(db)
	outboxRepo := sqliteadapter.NewOutboxRepository(db)

	authService := usecase.NewAuthService(userRepo, []byte(cfg.JWTSecret), cfg.TokenTTL)
	inventoryService := usecase.NewInventoryService(inventoryStore)
	auditService := usecase.NewAuditService(auditRepo)

	var publisher ports.EventPublisher
	if cfg.WebhookURL != "" {
		publisher = events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 0)
	} else {
		publisher = events.NewLogPublisher(log)
	}
	dispatcher := usecase.NewOutboxDispatcher(outboxRepo, publisher, log, 2*time.Second, 100)
	dispatcher.Start(context.Background())

	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword != "" {
		if err := bootstrapAdmin(authService, cfg, log); err != nil {
			_ = dispatcher.Close()
			_ = db.Close()
			return nil, nil, fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	handler, err := httpapi.NewHandler(authService, inventoryService, auditService, log)
	if err != nil {
		_ = dispatcher.Close()
		_ = db.Close()
		return nil, nil, err
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: []io.Closer{dispatcher, db}}, nil
}

// bootstrapAdmin registers the configured startup admin. An already existing
// account is not an error, so restarts are idempotent.
func bootstrapAdmin(auth *usecase.AuthService, cfg Config, log *logrus.Logger) error {
	username := cfg.BootstrapAdminUsername
	if username == "" {
		username = "admin"
	}

	bootstrapCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, err := auth.Register(bootstrapCtx, domain.UserDraft{
		Email:    cfg.BootstrapAdminEmail,
		Username: username,
		Password: cfg.BootstrapAdminPassword,
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) || errors.Is(err, domain.ErrDuplicateUsername) {
			return nil
		}
		return err
	}

	log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("bootstrap admin created")
	return nil
}
