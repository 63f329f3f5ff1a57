package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	health := NewHealthController(cfg.Database, cfg.Sync, cfg.Version)
	router.GET("/health", health.Status)

	api := router.Group("/api")

	if cfg.Sync != nil {
		syncController := NewSyncController(cfg.Sync, cfg.Runs, cfg.Tasks)
		if cfg.SyncLimiter != nil {
			api.POST("/sync", cfg.SyncLimiter.Middleware(), syncController.SyncNow)
		} else {
			api.POST("/sync", syncController.SyncNow)
		}
		api.GET("/sync/status", syncController.Status)
		if cfg.Runs != nil {
			api.GET("/sync/runs", syncController.ListRuns)
			api.GET("/sync/runs/:id", syncController.GetRun)
		}
	}

	if cfg.Servers != nil {
		serversController := NewServersController(cfg.Servers, cfg.Audit)
		api.GET("/servers", serversController.List)
		api.GET("/servers/:server_id", serversController.Get)
		api.PUT("/servers/:server_id", serversController.Save)
		api.DELETE("/servers/:server_id", serversController.Delete)
	}

	if cfg.Reading != nil {
		readingController := NewReadingController(cfg.Reading)
		api.GET("/servers/:server_id/downloads", readingController.ListDownloads)

		book := api.Group("/servers/:server_id/books/:book_id")
		book.PUT("/download", readingController.RegisterDownload)
		book.DELETE("/download", readingController.RemoveDownload)
		book.GET("/progress", readingController.GetProgress)
		book.PUT("/progress", readingController.RecordProgress)
		book.GET("/bookmarks", readingController.ListBookmarks)
		book.POST("/bookmarks", readingController.AddBookmark)
		book.GET("/annotations", readingController.ListAnnotations)
		book.POST("/annotations", readingController.AddAnnotation)

		api.DELETE("/bookmarks/:id", readingController.RemoveBookmark)
		api.PATCH("/annotations/:id", readingController.EditAnnotation)
		api.DELETE("/annotations/:id", readingController.RemoveAnnotation)
	}

	if cfg.Audit != nil {
		auditController := NewAuditController(cfg.Audit)
		api.GET("/audit", auditController.GetAuditEvents)
	}

	if cfg.Tasks != nil {
		tasksController := NewTasksController(cfg.Tasks)
		api.GET("/tasks/:id", tasksController.GetTaskStatus)
	}

	return router
}
