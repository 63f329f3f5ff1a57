package entities

import (
	"time"
)

// DownloadedBook is a book whose assets are stored on this device.
// Only downloaded books take part in reading-state sync.
type DownloadedBook struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	BookID       string    `gorm:"size:128;not null;uniqueIndex:idx_downloaded_book_server" json:"book_id"`
	ServerID     string    `gorm:"size:128;not null;uniqueIndex:idx_downloaded_book_server" json:"server_id"`
	Title        string    `gorm:"size:512" json:"title,omitempty"`
	FilePath     string    `gorm:"size:1024" json:"file_path,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

func (DownloadedBook) TableName() string {
	return "downloaded_books"
}

// ReadProgress is the reading position for one book on one server.
type ReadProgress struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	BookID          string     `gorm:"size:128;not null;uniqueIndex:idx_progress_book_server" json:"book_id"`
	ServerID        string     `gorm:"size:128;not null;uniqueIndex:idx_progress_book_server" json:"server_id"`
	Page            *int       `json:"page,omitempty"`
	Percentage      *float64   `json:"percentage,omitempty"`
	EpubLocator     string     `gorm:"type:text" json:"epub_locator,omitempty"` // raw readium locator JSON
	ElapsedSeconds  *int       `json:"elapsed_seconds,omitempty"`
	LastModified    time.Time  `gorm:"not null" json:"last_modified"`
	SyncStatus      SyncStatus `gorm:"size:16;not null;index;default:'UNSYNCED'" json:"sync_status"`
	StatusChangedAt time.Time  `json:"status_changed_at"`
}

func (ReadProgress) TableName() string {
	return "read_progress"
}

// Bookmark is a saved position within a book. Content is immutable once
// created; only create and delete are synced.
type Bookmark struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	BookID           string     `gorm:"size:128;not null;index" json:"book_id"`
	ServerID         string     `gorm:"size:128;not null;index;uniqueIndex:idx_bookmark_server_link" json:"server_id"`
	ServerBookmarkID *string    `gorm:"size:128;uniqueIndex:idx_bookmark_server_link" json:"server_bookmark_id,omitempty"`
	Href             string     `gorm:"size:1024;not null" json:"href"`
	Locations        string     `gorm:"type:text" json:"locations,omitempty"` // raw readium locations JSON
	PreviewContent   *string    `gorm:"type:text" json:"preview_content,omitempty"`
	SyncStatus       SyncStatus `gorm:"size:16;not null;index;default:'UNSYNCED'" json:"sync_status"`
	StatusChangedAt  time.Time  `json:"status_changed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	DeletedAt        *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

func (Bookmark) TableName() string {
	return "bookmarks"
}

// IsLinked reports whether the server has acknowledged this bookmark.
func (b *Bookmark) IsLinked() bool {
	return b.ServerBookmarkID != nil && *b.ServerBookmarkID != ""
}

// Annotation is a highlight with optional free text. Text may be edited
// after creation.
type Annotation struct {
	ID                 string     `gorm:"primaryKey;size:36" json:"id"`
	BookID             string     `gorm:"size:128;not null;index" json:"book_id"`
	ServerID           string     `gorm:"size:128;not null;index;uniqueIndex:idx_annotation_server_link" json:"server_id"`
	ServerAnnotationID *string    `gorm:"size:128;uniqueIndex:idx_annotation_server_link" json:"server_annotation_id,omitempty"`
	Locator            string     `gorm:"type:text;not null" json:"locator"` // raw readium locator JSON
	AnnotationText     *string    `gorm:"type:text" json:"annotation_text,omitempty"`
	SyncStatus         SyncStatus `gorm:"size:16;not null;index;default:'UNSYNCED'" json:"sync_status"`
	StatusChangedAt    time.Time  `json:"status_changed_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime:false" json:"updated_at"`
	DeletedAt          *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

func (Annotation) TableName() string {
	return "annotations"
}

// IsLinked reports whether the server has acknowledged this annotation.
func (a *Annotation) IsLinked() bool {
	return a.ServerAnnotationID != nil && *a.ServerAnnotationID != ""
}
