package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/shelfsync/internal/entities"
)

type AuditController struct {
	audit AuditLog
}

func NewAuditController(audit AuditLog) *AuditController {
	return &AuditController{audit: audit}
}

// GetAuditEvents returns paginated audit events as JSON
// GET /api/audit?server_id=&type=&page=&limit=
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit := parseLimit(c, 25, 100)
	offset := (page - 1) * limit

	events, total, err := ac.audit.GetEvents(
		c.Request.Context(),
		c.Query("server_id"),
		entities.AuditEventType(c.Query("type")),
		limit,
		offset,
	)
	if err != nil {
		respondInternalError(c, err, "get audit events")
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:    events,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(events)) < total,
	})
}
