package api

import (
	"alcyxob/health-protocols/internal/domain"
	"alcyxob/health-protocols/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type TemplateHandler struct {
	templateService service.TemplateService
}

func NewTemplateHandler(templateService service.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

// ListTemplates godoc
// @Summary List protocol templates
// @Tags Templates
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.ProtocolTemplate
// @Router /protocol-templates [get]
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	templates, err := h.templateService.ListTemplates(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve templates.")
		return
	}
	if templates == nil {
		templates = []domain.ProtocolTemplate{}
	}
	c.JSON(http.StatusOK, templates)
}

// GetTemplate godoc
// @Summary Get one protocol template
// @Tags Templates
// @Produce json
// @Security BearerAuth
// @Param id path string true "Template slug"
// @Success 200 {object} domain.ProtocolTemplate
// @Failure 404 {object} gin.H
// @Router /protocol-templates/{id} [get]
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	tmpl, err := h.templateService.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrTemplateNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
			return
		}
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve template.")
		return
	}
	c.JSON(http.StatusOK, tmpl)
}
