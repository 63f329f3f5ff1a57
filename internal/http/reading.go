package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/shelfsync/internal/reading"
)

// ReadingController exposes local edits of reading state.
type ReadingController struct {
	reading ReadingService
}

func NewReadingController(reading ReadingService) *ReadingController {
	return &ReadingController{reading: reading}
}

type downloadRequest struct {
	Title    string `json:"title"`
	FilePath string `json:"file_path"`
}

type progressRequest struct {
	Page           *int     `json:"page"`
	Percentage     *float64 `json:"percentage"`
	EpubLocator    string   `json:"epub_locator"`
	ElapsedSeconds *int     `json:"elapsed_seconds"`
}

type bookmarkRequest struct {
	Href           string  `json:"href"`
	Locations      string  `json:"locations"`
	PreviewContent *string `json:"preview_content"`
}

type annotationRequest struct {
	Locator        string  `json:"locator"`
	AnnotationText *string `json:"annotation_text"`
}

type annotationTextRequest struct {
	AnnotationText *string `json:"annotation_text"`
}

// ListDownloads handles GET /api/servers/:server_id/downloads
func (rc *ReadingController) ListDownloads(c *gin.Context) {
	books, err := rc.reading.Downloads(c.Request.Context(), c.Param("server_id"))
	if err != nil {
		respondInternalError(c, err, "list downloads")
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": books})
}

// RegisterDownload handles PUT /api/servers/:server_id/books/:book_id/download
func (rc *ReadingController) RegisterDownload(c *gin.Context) {
	var req downloadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}
	book, err := rc.reading.RegisterDownload(c.Request.Context(), reading.DownloadInput{
		ServerID: c.Param("server_id"),
		BookID:   c.Param("book_id"),
		Title:    req.Title,
		FilePath: req.FilePath,
	})
	if err != nil {
		respondServiceError(c, err, "book", "register download")
		return
	}
	c.JSON(http.StatusOK, book)
}

// RemoveDownload handles DELETE /api/servers/:server_id/books/:book_id/download
func (rc *ReadingController) RemoveDownload(c *gin.Context) {
	if err := rc.reading.RemoveDownload(c.Request.Context(), c.Param("server_id"), c.Param("book_id")); err != nil {
		respondInternalError(c, err, "remove download")
		return
	}
	respondSuccess(c, "download removed")
}

// GetProgress handles GET /api/servers/:server_id/books/:book_id/progress
func (rc *ReadingController) GetProgress(c *gin.Context) {
	p, err := rc.reading.Progress(c.Request.Context(), c.Param("server_id"), c.Param("book_id"))
	if err != nil {
		respondInternalError(c, err, "get progress")
		return
	}
	if p == nil {
		respondNotFound(c, "progress")
		return
	}
	c.JSON(http.StatusOK, p)
}

// RecordProgress handles PUT /api/servers/:server_id/books/:book_id/progress
func (rc *ReadingController) RecordProgress(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	p, err := rc.reading.RecordProgress(c.Request.Context(), reading.ProgressInput{
		ServerID:       c.Param("server_id"),
		BookID:         c.Param("book_id"),
		Page:           req.Page,
		Percentage:     req.Percentage,
		EpubLocator:    req.EpubLocator,
		ElapsedSeconds: req.ElapsedSeconds,
	})
	if err != nil {
		respondServiceError(c, err, "book", "record progress")
		return
	}
	c.JSON(http.StatusOK, p)
}

// ListBookmarks handles GET /api/servers/:server_id/books/:book_id/bookmarks
func (rc *ReadingController) ListBookmarks(c *gin.Context) {
	bookmarks, err := rc.reading.Bookmarks(c.Request.Context(), c.Param("server_id"), c.Param("book_id"))
	if err != nil {
		respondInternalError(c, err, "list bookmarks")
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarks": bookmarks})
}

// AddBookmark handles POST /api/servers/:server_id/books/:book_id/bookmarks
func (rc *ReadingController) AddBookmark(c *gin.Context) {
	var req bookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	b, err := rc.reading.AddBookmark(c.Request.Context(), reading.BookmarkInput{
		ServerID:       c.Param("server_id"),
		BookID:         c.Param("book_id"),
		Href:           req.Href,
		Locations:      req.Locations,
		PreviewContent: req.PreviewContent,
	})
	if err != nil {
		respondServiceError(c, err, "book", "add bookmark")
		return
	}
	respondCreated(c, b)
}

// RemoveBookmark handles DELETE /api/bookmarks/:id
func (rc *ReadingController) RemoveBookmark(c *gin.Context) {
	if err := rc.reading.RemoveBookmark(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err, "bookmark", "remove bookmark")
		return
	}
	respondSuccess(c, "bookmark removed")
}

// ListAnnotations handles GET /api/servers/:server_id/books/:book_id/annotations
func (rc *ReadingController) ListAnnotations(c *gin.Context) {
	annotations, err := rc.reading.Annotations(c.Request.Context(), c.Param("server_id"), c.Param("book_id"))
	if err != nil {
		respondInternalError(c, err, "list annotations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"annotations": annotations})
}

// AddAnnotation handles POST /api/servers/:server_id/books/:book_id/annotations
func (rc *ReadingController) AddAnnotation(c *gin.Context) {
	var req annotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	a, err := rc.reading.AddAnnotation(c.Request.Context(), reading.AnnotationInput{
		ServerID:       c.Param("server_id"),
		BookID:         c.Param("book_id"),
		Locator:        req.Locator,
		AnnotationText: req.AnnotationText,
	})
	if err != nil {
		respondServiceError(c, err, "book", "add annotation")
		return
	}
	respondCreated(c, a)
}

// EditAnnotation handles PATCH /api/annotations/:id
func (rc *ReadingController) EditAnnotation(c *gin.Context) {
	var req annotationTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if err := rc.reading.EditAnnotation(c.Request.Context(), c.Param("id"), req.AnnotationText); err != nil {
		respondServiceError(c, err, "annotation", "edit annotation")
		return
	}
	respondSuccess(c, "annotation updated")
}

// RemoveAnnotation handles DELETE /api/annotations/:id
func (rc *ReadingController) RemoveAnnotation(c *gin.Context) {
	if err := rc.reading.RemoveAnnotation(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err, "annotation", "remove annotation")
		return
	}
	respondSuccess(c, "annotation removed")
}
