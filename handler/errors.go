package handler

import (
	"errors"
	"log"

	"timearchitect/usecase"
	"timearchitect/utils"

	"github.com/gin-gonic/gin"
)

// respondError maps usecase errors onto the response envelope. Anything it
// does not recognize is logged and reported as a 500.
func respondError(c *gin.Context, operation string, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidActivity),
		errors.Is(err, usecase.ErrInvalidBreakType),
		errors.Is(err, usecase.ErrInvalidSetting):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, usecase.ErrSessionNotFound),
		errors.Is(err, usecase.ErrSettingNotFound),
		errors.Is(err, usecase.ErrNoActiveSession):
		utils.NotFound(c, err.Error())
	case errors.Is(err, usecase.ErrBreakInProgress),
		errors.Is(err, usecase.ErrNoOpenBreak),
		errors.Is(err, usecase.ErrSessionAlreadyActive),
		errors.Is(err, usecase.ErrSessionCompleted),
		errors.Is(err, usecase.ErrConcurrentUpdate):
		utils.Conflict(c, err.Error())
	default:
		log.Printf("Error during %s: %v", operation, err)
		utils.TrackError("handler", operation)
		utils.InternalError(c, "Failed to "+operation)
	}
}
