package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/classqa/internal/model"
	"github.com/stemsi/classqa/internal/response"
	"github.com/stemsi/classqa/internal/validator"
)

// ArchiveSettingsStore reads and writes retention settings.
type ArchiveSettingsStore interface {
	GetArchiveSettings(ctx context.Context) (model.ArchiveSettings, error)
	UpdateArchiveSettings(ctx context.Context, s model.ArchiveSettings) error
}

type SettingHandler struct {
	settings ArchiveSettingsStore
}

func NewSettingHandler(settings ArchiveSettingsStore) *SettingHandler {
	return &SettingHandler{settings: settings}
}

// GetArchive godoc
// GET /api/v1/settings/archive
func (h *SettingHandler) GetArchive(c *gin.Context) {
	settings, err := h.settings.GetArchiveSettings(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, settings)
}

// UpdateArchive godoc
// PUT /api/v1/settings/archive
func (h *SettingHandler) UpdateArchive(c *gin.Context) {
	var req model.ArchiveSettings
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.settings.UpdateArchiveSettings(c.Request.Context(), req); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, req)
}
