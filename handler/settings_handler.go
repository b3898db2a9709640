package handler

import (
	"timearchitect/dto"
	"timearchitect/usecase"
	"timearchitect/utils"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	service *usecase.SettingsService
}

func NewSettingsHandler(service *usecase.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

func (h *SettingsHandler) ListSettings(c *gin.Context) {
	settings, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, "fetch settings", err)
		return
	}
	utils.Success(c, settings)
}

func (h *SettingsHandler) GetSetting(c *gin.Context) {
	setting, err := h.service.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, "fetch setting", err)
		return
	}
	utils.Success(c, setting)
}

func (h *SettingsHandler) UpdateSetting(c *gin.Context) {
	var req dto.SettingUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Value == nil {
		utils.BadRequest(c, "Value is required")
		return
	}

	setting, err := h.service.Update(c.Request.Context(), c.Param("key"), req.Value)
	if err != nil {
		respondError(c, "update setting", err)
		return
	}
	utils.Message(c, "Setting updated", setting)
}
