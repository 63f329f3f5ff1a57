// Package reading applies edits made on the device to the local reading state.
//
// Every edit marks the affected row UNSYNCED so the next push sends it to its
// server. Edits never talk to a server themselves.
package reading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/locator"
)

var (
	// ErrInvalidInput wraps validation failures of edit inputs.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotDownloaded is returned when editing state of a book that is not on this device.
	ErrNotDownloaded = errors.New("book is not downloaded")
)

// BookRegistry tracks downloaded books.
type BookRegistry interface {
	RegisterDownload(ctx context.Context, book *entities.DownloadedBook) error
	RemoveDownload(ctx context.Context, serverID, bookID string) error
	IsDownloaded(ctx context.Context, serverID, bookID string) (bool, error)
	ListDownloads(ctx context.Context, serverID string) ([]entities.DownloadedBook, error)
}

// ProgressWriter persists local reading progress.
type ProgressWriter interface {
	GetProgress(ctx context.Context, serverID, bookID string) (*entities.ReadProgress, error)
	UpsertProgress(ctx context.Context, p *entities.ReadProgress) error
}

// BookmarkWriter persists local bookmarks.
type BookmarkWriter interface {
	ListBookmarks(ctx context.Context, serverID, bookID string) ([]entities.Bookmark, error)
	InsertBookmark(ctx context.Context, b *entities.Bookmark) error
	SoftDeleteBookmark(ctx context.Context, id string) error
}

// AnnotationWriter persists local annotations.
type AnnotationWriter interface {
	ListAnnotations(ctx context.Context, serverID, bookID string) ([]entities.Annotation, error)
	InsertAnnotation(ctx context.Context, a *entities.Annotation) error
	UpdateAnnotationText(ctx context.Context, id string, text *string) error
	SoftDeleteAnnotation(ctx context.Context, id string) error
}

// DownloadInput registers a book stored on this device.
type DownloadInput struct {
	ServerID string `json:"server_id" validate:"required"`
	BookID   string `json:"book_id" validate:"required"`
	Title    string `json:"title"`
	FilePath string `json:"file_path"`
}

// ProgressInput is a reading position reported by the reader.
type ProgressInput struct {
	ServerID       string   `json:"server_id" validate:"required"`
	BookID         string   `json:"book_id" validate:"required"`
	Page           *int     `json:"page" validate:"omitempty,gte=0"`
	Percentage     *float64 `json:"percentage" validate:"omitempty,gte=0,lte=1"`
	EpubLocator    string   `json:"epub_locator"`
	ElapsedSeconds *int     `json:"elapsed_seconds" validate:"omitempty,gte=0"`
}

// BookmarkInput creates a bookmark.
type BookmarkInput struct {
	ServerID       string  `json:"server_id" validate:"required"`
	BookID         string  `json:"book_id" validate:"required"`
	Href           string  `json:"href" validate:"required"`
	Locations      string  `json:"locations"`
	PreviewContent *string `json:"preview_content"`
}

// AnnotationInput creates an annotation.
type AnnotationInput struct {
	ServerID       string  `json:"server_id" validate:"required"`
	BookID         string  `json:"book_id" validate:"required"`
	Locator        string  `json:"locator" validate:"required"`
	AnnotationText *string `json:"annotation_text"`
}

// Service applies local edits.
type Service struct {
	books       BookRegistry
	progress    ProgressWriter
	bookmarks   BookmarkWriter
	annotations AnnotationWriter
	validate    *validator.Validate
	now         func() time.Time
}

func NewService(books BookRegistry, progress ProgressWriter, bookmarks BookmarkWriter, annotations AnnotationWriter) *Service {
	return &Service{
		books:       books,
		progress:    progress,
		bookmarks:   bookmarks,
		annotations: annotations,
		validate:    validator.New(),
		now:         time.Now,
	}
}

// RegisterDownload records that a book is stored on this device, which makes
// it part of sync with its server.
func (s *Service) RegisterDownload(ctx context.Context, in DownloadInput) (*entities.DownloadedBook, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	book := &entities.DownloadedBook{
		BookID:       in.BookID,
		ServerID:     in.ServerID,
		Title:        strings.TrimSpace(in.Title),
		FilePath:     in.FilePath,
		DownloadedAt: s.now(),
	}
	if err := s.books.RegisterDownload(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to register download: %w", err)
	}
	return book, nil
}

// RemoveDownload stops syncing a book. Its cached reading state stays.
func (s *Service) RemoveDownload(ctx context.Context, serverID, bookID string) error {
	return s.books.RemoveDownload(ctx, serverID, bookID)
}

// Downloads lists the books downloaded from a server.
func (s *Service) Downloads(ctx context.Context, serverID string) ([]entities.DownloadedBook, error) {
	return s.books.ListDownloads(ctx, serverID)
}

// Progress returns the local progress of a book, or nil when none is recorded.
func (s *Service) Progress(ctx context.Context, serverID, bookID string) (*entities.ReadProgress, error) {
	return s.progress.GetProgress(ctx, serverID, bookID)
}

// RecordProgress stores the reader's current position.
func (s *Service) RecordProgress(ctx context.Context, in ProgressInput) (*entities.ReadProgress, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if in.EpubLocator != "" {
		if err := locator.Parse(in.EpubLocator).Err(); err != nil {
			return nil, fmt.Errorf("%w: epub_locator: %v", ErrInvalidInput, err)
		}
	}
	if in.Page == nil && in.Percentage == nil && in.EpubLocator == "" {
		return nil, fmt.Errorf("%w: one of page, percentage or epub_locator is required", ErrInvalidInput)
	}
	if err := s.requireDownloaded(ctx, in.ServerID, in.BookID); err != nil {
		return nil, err
	}

	now := s.now()
	p := &entities.ReadProgress{
		BookID:          in.BookID,
		ServerID:        in.ServerID,
		Page:            in.Page,
		Percentage:      in.Percentage,
		EpubLocator:     in.EpubLocator,
		ElapsedSeconds:  in.ElapsedSeconds,
		LastModified:    now,
		SyncStatus:      entities.SyncStatusUnsynced,
		StatusChangedAt: now,
	}
	if err := s.progress.UpsertProgress(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}
	return p, nil
}

// Bookmarks lists the visible bookmarks of a book.
func (s *Service) Bookmarks(ctx context.Context, serverID, bookID string) ([]entities.Bookmark, error) {
	return s.bookmarks.ListBookmarks(ctx, serverID, bookID)
}

// AddBookmark creates an unsynced bookmark.
func (s *Service) AddBookmark(ctx context.Context, in BookmarkInput) (*entities.Bookmark, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Locations) != "" {
		if err := locator.ParseLocations(in.Locations).Err(); err != nil {
			return nil, fmt.Errorf("%w: locations: %v", ErrInvalidInput, err)
		}
	}
	if err := s.requireDownloaded(ctx, in.ServerID, in.BookID); err != nil {
		return nil, err
	}

	now := s.now()
	b := &entities.Bookmark{
		BookID:          in.BookID,
		ServerID:        in.ServerID,
		Href:            in.Href,
		Locations:       in.Locations,
		PreviewContent:  in.PreviewContent,
		SyncStatus:      entities.SyncStatusUnsynced,
		StatusChangedAt: now,
		CreatedAt:       now,
	}
	if err := s.bookmarks.InsertBookmark(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to save bookmark: %w", err)
	}
	return b, nil
}

// RemoveBookmark hides a bookmark until the next push deletes it remotely.
func (s *Service) RemoveBookmark(ctx context.Context, id string) error {
	return s.bookmarks.SoftDeleteBookmark(ctx, id)
}

// Annotations lists the visible annotations of a book.
func (s *Service) Annotations(ctx context.Context, serverID, bookID string) ([]entities.Annotation, error) {
	return s.annotations.ListAnnotations(ctx, serverID, bookID)
}

// AddAnnotation creates an unsynced annotation.
func (s *Service) AddAnnotation(ctx context.Context, in AnnotationInput) (*entities.Annotation, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if err := locator.Parse(in.Locator).Err(); err != nil {
		return nil, fmt.Errorf("%w: locator: %v", ErrInvalidInput, err)
	}
	if err := s.requireDownloaded(ctx, in.ServerID, in.BookID); err != nil {
		return nil, err
	}

	now := s.now()
	a := &entities.Annotation{
		BookID:          in.BookID,
		ServerID:        in.ServerID,
		Locator:         in.Locator,
		AnnotationText:  in.AnnotationText,
		SyncStatus:      entities.SyncStatusUnsynced,
		StatusChangedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.annotations.InsertAnnotation(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save annotation: %w", err)
	}
	return a, nil
}

// EditAnnotation replaces the text of an annotation. A nil text clears it.
func (s *Service) EditAnnotation(ctx context.Context, id string, text *string) error {
	return s.annotations.UpdateAnnotationText(ctx, id, text)
}

// RemoveAnnotation hides an annotation until the next push deletes it remotely.
func (s *Service) RemoveAnnotation(ctx context.Context, id string) error {
	return s.annotations.SoftDeleteAnnotation(ctx, id)
}

func (s *Service) check(in any) error {
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (s *Service) requireDownloaded(ctx context.Context, serverID, bookID string) error {
	ok, err := s.books.IsDownloaded(ctx, serverID, bookID)
	if err != nil {
		return fmt.Errorf("failed to check download: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrNotDownloaded, bookID, serverID)
	}
	return nil
}
