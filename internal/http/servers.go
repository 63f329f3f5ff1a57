package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/shelfsync/internal/entities"
)

// ServersController manages the server registry. Tokens are write-only.
type ServersController struct {
	servers ServerStore
	audit   AuditLog
}

func NewServersController(servers ServerStore, audit AuditLog) *ServersController {
	return &ServersController{servers: servers, audit: audit}
}

type saveServerRequest struct {
	Name  string `json:"name"`
	URL   string `json:"url" binding:"required"`
	Token string `json:"token"`
}

// List handles GET /api/servers
func (sc *ServersController) List(c *gin.Context) {
	servers, err := sc.servers.ListServers(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list servers")
		return
	}
	c.JSON(http.StatusOK, gin.H{"servers": servers})
}

// Get handles GET /api/servers/:server_id
func (sc *ServersController) Get(c *gin.Context) {
	server, err := sc.servers.GetServer(c.Request.Context(), c.Param("server_id"))
	if err != nil {
		respondServiceError(c, err, "server", "get server")
		return
	}
	c.JSON(http.StatusOK, server)
}

// Save handles PUT /api/servers/:server_id
func (sc *ServersController) Save(c *gin.Context) {
	var req saveServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "url is required")
		return
	}

	id := c.Param("server_id")
	err := sc.servers.SaveServer(c.Request.Context(), entities.ServerCredentials{
		ID:    id,
		Name:  strings.TrimSpace(req.Name),
		URL:   strings.TrimSpace(req.URL),
		Token: req.Token,
	})
	if err != nil {
		respondServiceError(c, err, "server", "save server")
		return
	}

	if sc.audit != nil {
		sc.audit.LogSettings(id, "server_saved", fmt.Sprintf("Server %s saved (%s)", id, req.URL))
	}

	server, err := sc.servers.GetServer(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "server", "get server")
		return
	}
	c.JSON(http.StatusOK, server)
}

// Delete handles DELETE /api/servers/:server_id
func (sc *ServersController) Delete(c *gin.Context) {
	id := c.Param("server_id")
	if err := sc.servers.DeleteServer(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "server", "delete server")
		return
	}
	if sc.audit != nil {
		sc.audit.LogSettings(id, "server_deleted", "Server "+id+" deleted")
	}
	respondSuccess(c, "server deleted")
}
