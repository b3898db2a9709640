package handler

import (
	"time"

	"timearchitect/dto"
	"timearchitect/usecase"
	"timearchitect/utils"

	"github.com/gin-gonic/gin"
)

type ActivityHandler struct {
	service *usecase.SessionService
}

func NewActivityHandler(service *usecase.SessionService) *ActivityHandler {
	return &ActivityHandler{service: service}
}

// ReportActivity answers 201 for a new entry and 200 with duplicate=true
// when the same (timestamp, type) was already recorded.
func (h *ActivityHandler) ReportActivity(c *gin.Context) {
	var req dto.ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	var timestamp time.Time
	if req.Timestamp != nil {
		timestamp = *req.Timestamp
	}

	result, err := h.service.ReportActivity(c.Request.Context(), usecase.ActivityReport{
		SessionID:     req.SessionID,
		Type:          req.Type,
		Timestamp:     timestamp,
		Details:       req.Details,
		IsOfflineSync: req.IsOfflineSync,
	})
	if err != nil {
		respondError(c, "record activity", err)
		return
	}

	response := dto.ActivityResponse{Duplicate: result.Duplicate, Timestamp: result.Entry.Timestamp}
	if result.Duplicate {
		utils.Message(c, "Activity already recorded", response)
		return
	}
	utils.Created(c, "Activity recorded", response)
}
