// Package servers stores the registry of remote servers and their API tokens.
// Tokens are encrypted before they reach the database and decrypted only when
// credentials are requested.
package servers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/shelfsync/internal/crypto"
	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/entities"
)

var ErrInvalidServer = errors.New("invalid server")

// Repository handles server registry database operations.
type Repository struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
}

// NewRepository creates a server repository that seals tokens with encryptor.
func NewRepository(db *gorm.DB, encryptor *crypto.Encryptor) *Repository {
	return &Repository{db: db, encryptor: encryptor}
}

// SaveServer registers a server or replaces its name, URL and token.
func (r *Repository) SaveServer(ctx context.Context, creds entities.ServerCredentials) error {
	if err := validate(creds); err != nil {
		return err
	}

	sealed, err := r.encryptor.Encrypt(creds.Token)
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	server := entities.Server{
		ID:    creds.ID,
		Name:  creds.Name,
		URL:   strings.TrimRight(creds.URL, "/"),
		Token: sealed,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "url", "token", "updated_at"}),
	}).Create(&server).Error
}

// GetServer returns a server without its token.
func (r *Repository) GetServer(ctx context.Context, id string) (*entities.Server, error) {
	var server entities.Server
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&server).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("server %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &server, nil
}

// ListServers returns all registered servers ordered by id.
func (r *Repository) ListServers(ctx context.Context) ([]entities.Server, error) {
	var rows []entities.Server
	err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error
	return rows, err
}

// Credentials returns the decrypted connection details of every server.
func (r *Repository) Credentials(ctx context.Context) ([]entities.ServerCredentials, error) {
	rows, err := r.ListServers(ctx)
	if err != nil {
		return nil, err
	}

	creds := make([]entities.ServerCredentials, 0, len(rows))
	for _, s := range rows {
		token, err := r.encryptor.Decrypt(s.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt token for server %s: %w", s.ID, err)
		}
		creds = append(creds, entities.ServerCredentials{ID: s.ID, Name: s.Name, URL: s.URL, Token: token})
	}
	return creds, nil
}

// DeleteServer removes a server from the registry. Reading state cached for
// it is left in place.
func (r *Repository) DeleteServer(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entities.Server{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("server %s: %w", id, database.ErrNotFound)
	}
	return nil
}

// MarkSynced records when a sync cycle last completed for a server.
func (r *Repository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&entities.Server{}).
		Where("id = ?", id).
		Update("last_synced_at", at).Error
}

func validate(creds entities.ServerCredentials) error {
	if strings.TrimSpace(creds.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidServer)
	}
	u, err := url.Parse(creds.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalidServer)
	}
	return nil
}
