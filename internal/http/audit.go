package http

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/dipgate/internal/audit"
	"github.com/mrlokans/dipgate/internal/entities"
)

type AuditController struct {
	auditService *audit.Service
}

func NewAuditController(auditService *audit.Service) *AuditController {
	return &AuditController{auditService: auditService}
}

// ListEvents handles GET /api/audit. Filters: user_id, action. Paging:
// limit, offset.
func (ac *AuditController) ListEvents(c *gin.Context) {
	limit, offset := parsePagination(c, 50, 200)

	var (
		events []entities.AuditEvent
		total  int64
		err    error
	)

	if action := c.Query("action"); action != "" {
		events, total, err = ac.auditService.GetEventsByAction(action, limit, offset)
	} else {
		var userID uint64
		if raw := c.Query("user_id"); raw != "" {
			userID, err = strconv.ParseUint(raw, 10, 32)
			if err != nil {
				respondBadRequest(c, "user_id must be a positive integer")
				return
			}
		}
		events, total, err = ac.auditService.GetEvents(uint(userID), limit, offset)
	}

	if err != nil {
		respondInternalError(c, err, "Failed to load audit events")
		return
	}

	c.JSON(200, PaginatedResponse{
		Data:    events,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(events)) < total,
	})
}
