package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrlokans/shelfsync/internal/audit"
	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/crypto"
	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/database/annotations"
	auditrepo "github.com/mrlokans/shelfsync/internal/database/audit"
	"github.com/mrlokans/shelfsync/internal/database/bookmarks"
	"github.com/mrlokans/shelfsync/internal/database/books"
	"github.com/mrlokans/shelfsync/internal/database/progress"
	"github.com/mrlokans/shelfsync/internal/database/servers"
	syncrepo "github.com/mrlokans/shelfsync/internal/database/sync"
	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/reading"
	"github.com/mrlokans/shelfsync/internal/syncer"
)

// App is the wired object graph shared by the server and CLI commands.
type App struct {
	DB      *database.Database
	Audit   *audit.Service
	Runs    *syncrepo.Repository
	Servers *servers.Repository
	Reading *reading.Service
	Runner  *syncer.Runner
}

// NewApp opens the database and wires repositories, services and the sync runner.
func NewApp(cfg *config.Config) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	secret, err := resolveSecret(cfg.Security.SecretKey, cfg.Database.Path)
	if err != nil {
		db.Close()
		return nil, err
	}
	encryptor, err := crypto.NewEncryptor(secret)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token encryption: %w", err)
	}

	bookRepo := books.NewRepository(db.DB)
	progressRepo := progress.NewRepository(db.DB)
	bookmarkRepo := bookmarks.NewRepository(db.DB)
	annotationRepo := annotations.NewRepository(db.DB)

	app := &App{
		DB:      db,
		Audit:   audit.NewService(auditrepo.NewRepository(db.DB)),
		Runs:    syncrepo.NewRepository(db.DB),
		Servers: servers.NewRepository(db.DB, encryptor),
		Reading: reading.NewService(bookRepo, progressRepo, bookmarkRepo, annotationRepo),
	}

	stores := syncer.Stores{
		Books:       bookRepo,
		Progress:    progressRepo,
		Bookmarks:   bookmarkRepo,
		Annotations: annotationRepo,
	}
	coordinator := syncer.NewCoordinator(stores, app.Audit, app.Runs, app.Servers, syncer.Options{
		StaleClaimAfter:    cfg.Sync.StaleClaimAfter,
		Concurrency:        cfg.Sync.PerServerLimit,
		MaxParallelServers: cfg.Sync.MaxParallelServers,
	})
	app.Runner = syncer.NewRunner(coordinator, app.Servers, app.Audit)

	return app, nil
}

// SeedServers registers the servers listed in a YAML config file. Existing
// servers with the same id are updated.
func (a *App) SeedServers(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	entries, err := config.LoadServers(path)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		err := a.Servers.SaveServer(ctx, entities.ServerCredentials{ID: e.ID, Name: e.Name, URL: e.URL, Token: e.Token})
		if err != nil {
			return 0, fmt.Errorf("failed to save server %s: %w", e.ID, err)
		}
	}
	log.Printf("Loaded %d servers from %s", len(entries), path)
	return len(entries), nil
}

// Close flushes pending audit writes and closes the database.
func (a *App) Close() error {
	a.Audit.Flush()
	return a.DB.Close()
}

// resolveSecret returns the configured secret, or one persisted next to the
// database. The file is created on first use.
func resolveSecret(configured, dbPath string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	path := filepath.Join(filepath.Dir(dbPath), ".shelfsync-secret")
	data, err := os.ReadFile(path)
	if err == nil {
		if secret := strings.TrimSpace(string(data)); secret != "" {
			return secret, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}

	secret, err := crypto.GenerateSecret()
	if err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	if err := os.WriteFile(path, []byte(secret+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to write secret file: %w", err)
	}
	log.Printf("Generated token encryption secret at %s (set SECRET_KEY to override)", path)
	return secret, nil
}
