package handler

import (
	"fmt"
	"time"

	"timearchitect/dto"
	"timearchitect/model"
	"timearchitect/usecase"
	"timearchitect/utils"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	service *usecase.SessionService
}

func NewSessionHandler(service *usecase.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

func (h *SessionHandler) ClockIn(c *gin.Context) {
	var req dto.ClockInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	session, err := h.service.ClockIn(c.Request.Context(), req.UserID, c.GetHeader("User-Agent"))
	if err != nil {
		respondError(c, "clock in", err)
		return
	}

	utils.Created(c, "Clocked in successfully", dto.ClockInResponse{
		SessionID: session.ID,
		StartTime: session.StartTime,
		Device:    session.Device,
	})
}

func (h *SessionHandler) ClockOut(c *gin.Context) {
	var req dto.ClockOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	view, err := h.service.ClockOut(c.Request.Context(), usecase.ClockOutRequest{
		UserID:   req.UserID,
		EndTime:  req.EndTime,
		Duration: req.Duration,
	})
	if err != nil {
		respondError(c, "clock out", err)
		return
	}

	utils.Message(c, "Clocked out successfully", dto.ClockOutResponse{
		SessionID: view.ID,
		Duration:  view.Totals.Duration,
		EndTime:   view.EndTime,
		Totals:    view.Totals,
	})
}

func (h *SessionHandler) StartBreak(c *gin.Context) {
	var req dto.BreakStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	session, err := h.service.StartBreak(c.Request.Context(), usecase.BreakRequest{
		UserID:           req.UserID,
		Type:             req.Type,
		Reason:           req.Reason,
		IntendedDuration: req.IntendedDuration,
	})
	if err != nil {
		respondError(c, "start break", err)
		return
	}

	utils.Message(c, "Break started", dto.BreakResponse{
		SessionID: session.ID,
		Break:     session.ActiveBreak(),
	})
}

func (h *SessionHandler) EndBreak(c *gin.Context) {
	var req dto.BreakEndRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	session, err := h.service.EndBreak(c.Request.Context(), req.UserID)
	if err != nil {
		respondError(c, "end break", err)
		return
	}

	ended := session.Breaks[len(session.Breaks)-1]
	utils.Message(c, "Break ended", dto.BreakResponse{SessionID: session.ID, Break: &ended})
}

func (h *SessionHandler) SyncDuration(c *gin.Context) {
	var req dto.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	session, err := h.service.UpdateSyncedDuration(c.Request.Context(), c.Param("id"), *req.Duration)
	if err != nil {
		respondError(c, "sync duration", err)
		return
	}

	utils.Success(c, dto.SyncResponse{
		SessionID:          session.ID,
		LastSyncedDuration: session.LastSyncedDuration,
		LastSyncTime:       session.LastSyncTime,
	})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	view, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "fetch session", err)
		return
	}
	utils.Success(c, dto.ToSessionResponse(view.Session, view.Totals))
}

func (h *SessionHandler) GetActiveSession(c *gin.Context) {
	view, err := h.service.GetActiveSession(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, "fetch active session", err)
		return
	}
	utils.Success(c, dto.ToSessionResponse(view.Session, view.Totals))
}

// ListSessions accepts start_date/end_date as YYYY-MM-DD (end inclusive) or
// RFC3339 instants, plus optional user_id and status filters.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	query := usecase.SessionQuery{
		UserID: c.Query("user_id"),
		Status: model.SessionStatus(c.Query("status")),
	}

	if raw := c.Query("start_date"); raw != "" {
		from, _, err := parseDateParam(raw)
		if err != nil {
			utils.BadRequest(c, "Invalid start_date: "+err.Error())
			return
		}
		query.From = &from
	}
	if raw := c.Query("end_date"); raw != "" {
		to, dateOnly, err := parseDateParam(raw)
		if err != nil {
			utils.BadRequest(c, "Invalid end_date: "+err.Error())
			return
		}
		if dateOnly {
			to = to.Add(24 * time.Hour)
		}
		query.To = &to
	}

	groups, err := h.service.ListSessions(c.Request.Context(), query)
	if err != nil {
		respondError(c, "fetch sessions", err)
		return
	}

	response := make([]dto.DayGroupResponse, 0, len(groups))
	for _, group := range groups {
		sessions := make([]dto.SessionResponse, 0, len(group.Sessions))
		for _, view := range group.Sessions {
			sessions = append(sessions, dto.ToSessionResponse(view.Session, view.Totals))
		}
		response = append(response, dto.DayGroupResponse{
			Key:      group.Key,
			UserID:   group.UserID,
			Date:     group.Date,
			Sessions: sessions,
			Totals:   group.Totals,
		})
	}
	utils.Success(c, response)
}

func (h *SessionHandler) Timeline(c *gin.Context) {
	segments, err := h.service.Timeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "build timeline", err)
		return
	}
	utils.Success(c, segments)
}

// TotalShiftTime reports today's UTC total unless ?date= names another day.
func (h *SessionHandler) TotalShiftTime(c *gin.Context) {
	day := h.service.Clock.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, _, err := parseDateParam(raw)
		if err != nil {
			utils.BadRequest(c, "Invalid date: "+err.Error())
			return
		}
		day = parsed
	}

	total, err := h.service.TotalShiftTime(c.Request.Context(), c.Param("userId"), day)
	if err != nil {
		respondError(c, "compute total shift time", err)
		return
	}
	utils.Success(c, total)
}

func parseDateParam(raw string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("expected YYYY-MM-DD or RFC3339, got %q", raw)
	}
	return t, false, nil
}
