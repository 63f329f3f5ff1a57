// Package books provides database operations for downloaded books.
//
// A book takes part in reading-state sync with a server only while its
// assets are downloaded from that server.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	ids, err := repo.DownloadedBookIDs(ctx, "server-1")
package books

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/shelfsync/internal/entities"
)

// Repository handles downloaded book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// RegisterDownload records that a book's assets are stored locally.
// Registering an already downloaded book refreshes its title, path and timestamp.
func (r *Repository) RegisterDownload(ctx context.Context, book *entities.DownloadedBook) error {
	if book.DownloadedAt.IsZero() {
		book.DownloadedAt = time.Now()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "book_id"}, {Name: "server_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "file_path", "downloaded_at"}),
	}).Create(book).Error
}

// RemoveDownload forgets a downloaded book. Cached reading state is kept.
func (r *Repository) RemoveDownload(ctx context.Context, serverID, bookID string) error {
	return r.db.WithContext(ctx).
		Where("server_id = ? AND book_id = ?", serverID, bookID).
		Delete(&entities.DownloadedBook{}).Error
}

// IsDownloaded reports whether the book is downloaded from the server.
func (r *Repository) IsDownloaded(ctx context.Context, serverID, bookID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.DownloadedBook{}).
		Where("server_id = ? AND book_id = ?", serverID, bookID).
		Count(&count).Error
	return count > 0, err
}

// DownloadedBookIDs returns the ids of all books downloaded from a server.
func (r *Repository) DownloadedBookIDs(ctx context.Context, serverID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&entities.DownloadedBook{}).
		Where("server_id = ?", serverID).
		Order("book_id ASC").
		Pluck("book_id", &ids).Error
	return ids, err
}

// ListDownloads returns downloaded books for a server, most recent first.
func (r *Repository) ListDownloads(ctx context.Context, serverID string) ([]entities.DownloadedBook, error) {
	var books []entities.DownloadedBook
	err := r.db.WithContext(ctx).
		Where("server_id = ?", serverID).
		Order("downloaded_at DESC").
		Find(&books).Error
	return books, err
}
