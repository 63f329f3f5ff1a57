package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/mrlokans/shelfsync/internal/locator"
)

const locatorFields = `href type title locations { fragments progression position totalProgression cssSelector partialCfi } text { before highlight after }`

const (
	mediaProgressQuery = `query MediaProgress($ids: [ID!]!) {
  mediaByIds(ids: $ids) {
    id
    readProgress { page percentageCompleted elapsedSeconds updatedAt locator { ` + locatorFields + ` } }
    readHistory { completedAt }
  }
}`

	updateProgressMutation = `mutation UpdateMediaProgress($id: ID!, $input: MediaProgressInput!) {
  updateMediaProgress(id: $id, input: $input) { __typename }
}`

	bookmarksQuery = `query MediaBookmarks($id: ID!) {
  mediaById(id: $id) {
    bookmarks { id href previewContent locations { fragments progression position totalProgression cssSelector partialCfi } }
  }
}`

	createBookmarkMutation = `mutation CreateBookmark($input: BookmarkInput!) {
  createBookmark(input: $input) { id }
}`

	deleteBookmarkMutation = `mutation DeleteBookmark($id: ID!) {
  deleteBookmark(id: $id) { id }
}`

	annotationsQuery = `query MediaAnnotations($id: ID!) {
  mediaById(id: $id) {
    annotations { id annotationText createdAt updatedAt locator { ` + locatorFields + ` } }
  }
}`

	createAnnotationMutation = `mutation CreateAnnotation($input: CreateAnnotationInput!) {
  createAnnotation(input: $input) { id annotationText createdAt updatedAt locator { ` + locatorFields + ` } }
}`

	updateAnnotationMutation = `mutation UpdateAnnotation($id: ID!, $annotationText: String) {
  updateAnnotation(id: $id, annotationText: $annotationText) { id annotationText createdAt updatedAt locator { ` + locatorFields + ` } }
}`

	deleteAnnotationMutation = `mutation DeleteAnnotation($id: ID!) {
  deleteAnnotation(id: $id) { id }
}`
)

// API is the typed set of operations the sync engines issue against a server.
type API struct {
	client Client
}

// NewAPI wraps an authenticated client.
func NewAPI(client Client) *API {
	return &API{client: client}
}

// ProgressRecord is the server's current reading position for a book.
type ProgressRecord struct {
	Page                *int             `json:"page"`
	PercentageCompleted *float64         `json:"percentageCompleted"`
	ElapsedSeconds      *int             `json:"elapsedSeconds"`
	Locator             *locator.Locator `json:"locator"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

// ReadSession is one completed read-through of a book.
type ReadSession struct {
	CompletedAt *time.Time `json:"completedAt"`
}

// MediaProgress bundles progress and completion history for one book.
type MediaProgress struct {
	ID           string          `json:"id"`
	ReadProgress *ProgressRecord `json:"readProgress"`
	ReadHistory  []ReadSession   `json:"readHistory"`
}

// LatestCompletion returns the most recent completion time, or nil.
func (m MediaProgress) LatestCompletion() *time.Time {
	var latest *time.Time
	for _, s := range m.ReadHistory {
		if s.CompletedAt == nil {
			continue
		}
		if latest == nil || s.CompletedAt.After(*latest) {
			t := *s.CompletedAt
			latest = &t
		}
	}
	return latest
}

// PagedProgressInput is the progress shape for paged media.
type PagedProgressInput struct {
	Page           *int `json:"page"`
	ElapsedSeconds *int `json:"elapsedSeconds,omitempty"`
}

// EpubProgressInput is the progress shape for reflowable media.
type EpubProgressInput struct {
	Locator        locator.Locator `json:"locator"`
	Percentage     *float64        `json:"percentage,omitempty"`
	ElapsedSeconds *int            `json:"elapsedSeconds,omitempty"`
}

// MediaProgressInput carries exactly one of Paged or Epub.
type MediaProgressInput struct {
	Paged *PagedProgressInput `json:"paged,omitempty"`
	Epub  *EpubProgressInput  `json:"epub,omitempty"`
}

// MediaProgress fetches progress and completion history for exactly the given ids.
func (a *API) MediaProgress(ctx context.Context, ids []string) ([]MediaProgress, error) {
	var data struct {
		MediaByIDs []MediaProgress `json:"mediaByIds"`
	}
	if err := a.client.Execute(ctx, mediaProgressQuery, map[string]any{"ids": ids}, &data); err != nil {
		return nil, fmt.Errorf("fetch media progress: %w", err)
	}
	return data.MediaByIDs, nil
}

// UpdateProgress sends the local reading position for a book.
func (a *API) UpdateProgress(ctx context.Context, mediaID string, input MediaProgressInput) error {
	vars := map[string]any{"id": mediaID, "input": input}
	if err := a.client.Execute(ctx, updateProgressMutation, vars, nil); err != nil {
		return fmt.Errorf("update progress for %s: %w", mediaID, err)
	}
	return nil
}

// Bookmark is a bookmark as stored on the server.
type Bookmark struct {
	ID             string             `json:"id"`
	Href           string             `json:"href"`
	Locations      *locator.Locations `json:"locations"`
	PreviewContent *string            `json:"previewContent"`
}

// CreateBookmarkInput describes a bookmark to create remotely.
type CreateBookmarkInput struct {
	MediaID        string             `json:"mediaId"`
	Href           string             `json:"href"`
	Locations      *locator.Locations `json:"locations,omitempty"`
	PreviewContent *string            `json:"previewContent,omitempty"`
}

// Bookmarks lists the server's bookmarks for a book.
func (a *API) Bookmarks(ctx context.Context, mediaID string) ([]Bookmark, error) {
	var data struct {
		MediaByID *struct {
			Bookmarks []Bookmark `json:"bookmarks"`
		} `json:"mediaById"`
	}
	if err := a.client.Execute(ctx, bookmarksQuery, map[string]any{"id": mediaID}, &data); err != nil {
		return nil, fmt.Errorf("fetch bookmarks for %s: %w", mediaID, err)
	}
	if data.MediaByID == nil {
		return nil, nil
	}
	return data.MediaByID.Bookmarks, nil
}

// CreateBookmark creates a bookmark and returns its server id.
func (a *API) CreateBookmark(ctx context.Context, input CreateBookmarkInput) (string, error) {
	var data struct {
		CreateBookmark struct {
			ID string `json:"id"`
		} `json:"createBookmark"`
	}
	if err := a.client.Execute(ctx, createBookmarkMutation, map[string]any{"input": input}, &data); err != nil {
		return "", fmt.Errorf("create bookmark for %s: %w", input.MediaID, err)
	}
	if data.CreateBookmark.ID == "" {
		return "", fmt.Errorf("create bookmark for %s: server returned no id", input.MediaID)
	}
	return data.CreateBookmark.ID, nil
}

// DeleteBookmark removes a bookmark by server id.
func (a *API) DeleteBookmark(ctx context.Context, id string) error {
	if err := a.client.Execute(ctx, deleteBookmarkMutation, map[string]any{"id": id}, nil); err != nil {
		return fmt.Errorf("delete bookmark %s: %w", id, err)
	}
	return nil
}

// Annotation is an annotation as stored on the server.
type Annotation struct {
	ID             string          `json:"id"`
	Locator        locator.Locator `json:"locator"`
	AnnotationText *string         `json:"annotationText"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// CreateAnnotationInput describes an annotation to create remotely.
type CreateAnnotationInput struct {
	MediaID        string          `json:"mediaId"`
	Locator        locator.Locator `json:"locator"`
	AnnotationText *string         `json:"annotationText,omitempty"`
}

// Annotations lists the server's annotations for a book.
func (a *API) Annotations(ctx context.Context, mediaID string) ([]Annotation, error) {
	var data struct {
		MediaByID *struct {
			Annotations []Annotation `json:"annotations"`
		} `json:"mediaById"`
	}
	if err := a.client.Execute(ctx, annotationsQuery, map[string]any{"id": mediaID}, &data); err != nil {
		return nil, fmt.Errorf("fetch annotations for %s: %w", mediaID, err)
	}
	if data.MediaByID == nil {
		return nil, nil
	}
	return data.MediaByID.Annotations, nil
}

// CreateAnnotation creates an annotation and returns the stored record.
func (a *API) CreateAnnotation(ctx context.Context, input CreateAnnotationInput) (*Annotation, error) {
	var data struct {
		CreateAnnotation Annotation `json:"createAnnotation"`
	}
	if err := a.client.Execute(ctx, createAnnotationMutation, map[string]any{"input": input}, &data); err != nil {
		return nil, fmt.Errorf("create annotation for %s: %w", input.MediaID, err)
	}
	if data.CreateAnnotation.ID == "" {
		return nil, fmt.Errorf("create annotation for %s: server returned no id", input.MediaID)
	}
	return &data.CreateAnnotation, nil
}

// UpdateAnnotation replaces the text of an existing annotation.
func (a *API) UpdateAnnotation(ctx context.Context, id string, text *string) (*Annotation, error) {
	var data struct {
		UpdateAnnotation Annotation `json:"updateAnnotation"`
	}
	vars := map[string]any{"id": id, "annotationText": text}
	if err := a.client.Execute(ctx, updateAnnotationMutation, vars, &data); err != nil {
		return nil, fmt.Errorf("update annotation %s: %w", id, err)
	}
	return &data.UpdateAnnotation, nil
}

// DeleteAnnotation removes an annotation by server id.
func (a *API) DeleteAnnotation(ctx context.Context, id string) error {
	if err := a.client.Execute(ctx, deleteAnnotationMutation, map[string]any{"id": id}, nil); err != nil {
		return fmt.Errorf("delete annotation %s: %w", id, err)
	}
	return nil
}
