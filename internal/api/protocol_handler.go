package api

import (
	"alcyxob/health-protocols/internal/api/dto"
	"alcyxob/health-protocols/internal/domain"
	"alcyxob/health-protocols/internal/service"
	"alcyxob/health-protocols/internal/storage"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProtocolHandler serves health protocols and their assignments.
type ProtocolHandler struct {
	protocolService service.ProtocolService
	maxBodyBytes    int64
}

func NewProtocolHandler(protocolService service.ProtocolService, maxBodyBytes int64) *ProtocolHandler {
	return &ProtocolHandler{protocolService: protocolService, maxBodyBytes: maxBodyBytes}
}

// --- DTOs ---

type AssignProtocolRequest struct {
	CustomerID string `json:"customerId" binding:"required,len=24,hexadecimal"`
}

type UpdateAssignmentRequest struct {
	Status domain.AssignmentStatus `json:"status" binding:"required,oneof=active completed cancelled"`
}

// --- Handler Methods ---

// CreateProtocol godoc
// @Summary Create a health protocol (and assign it to the target customer)
// @Description Accepts bodies up to server.max_protocol_body_bytes (1 MiB by default).
// @Tags Protocols
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body domain.ProtocolCreationRequest true "Protocol built by the wizard"
// @Success 201 {object} dto.CreateProtocolResponse
// @Failure 400 {object} gin.H "Validation failure"
// @Failure 403 {object} gin.H "Customer not managed by this trainer"
// @Failure 413 {object} gin.H "Body over the size ceiling"
// @Failure 502 {object} gin.H "Content generation failed"
// @Router /trainer/health-protocols [post]
func (h *ProtocolHandler) CreateProtocol(c *gin.Context) {
	var req domain.ProtocolCreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			abortPayloadTooLarge(c, h.maxBodyBytes)
			return
		}
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	trainerID, ok := mustUserObjectID(c)
	if !ok {
		return
	}

	created, err := h.protocolService.CreateProtocol(c.Request.Context(), trainerID, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidProtocol), errors.Is(err, service.ErrTemplateNotFound):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrCustomerNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrCustomerNotManaged):
			abortWithError(c, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrActiveAssignmentExists):
			abortWithError(c, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrGenerationFailed):
			_ = c.Error(err)
			abortWithError(c, http.StatusBadGateway, "Protocol content generation failed.")
		default:
			_ = c.Error(err)
			abortWithError(c, http.StatusInternalServerError, "Failed to create protocol.")
		}
		return
	}

	resp := dto.CreateProtocolResponse{Protocol: dto.MapProtocolToResponse(created.Protocol)}
	if created.Assignment != nil {
		a := dto.MapAssignmentToResponse(created.Assignment)
		resp.Assignment = &a
	}
	c.JSON(http.StatusCreated, resp)
}

// ListProtocols godoc
// @Summary List the trainer's protocols
// @Tags Protocols
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.ProtocolResponse
// @Router /trainer/health-protocols [get]
func (h *ProtocolHandler) ListProtocols(c *gin.Context) {
	trainerID, ok := mustUserObjectID(c)
	if !ok {
		return
	}
	protocols, err := h.protocolService.ListProtocols(c.Request.Context(), trainerID)
	if err != nil {
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve protocols.")
		return
	}
	c.JSON(http.StatusOK, dto.MapProtocolsToResponse(protocols))
}

// GetProtocol godoc
// @Summary Get one of the trainer's protocols
// @Tags Protocols
// @Produce json
// @Security BearerAuth
// @Param protocolId path string true "Protocol ObjectID Hex"
// @Success 200 {object} dto.ProtocolResponse
// @Router /trainer/health-protocols/{protocolId} [get]
func (h *ProtocolHandler) GetProtocol(c *gin.Context) {
	trainerID, ok := mustUserObjectID(c)
	if !ok {
		return
	}
	protocolID, ok := pathObjectID(c, "protocolId")
	if !ok {
		return
	}

	protocol, err := h.protocolService.GetProtocol(c.Request.Context(), trainerID, protocolID)
	if err != nil {
		h.abortProtocolLookup(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapProtocolToResponse(protocol))
}

// AssignProtocol godoc
// @Summary Assign an existing protocol to a customer
// @Tags Protocols
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param protocolId path string true "Protocol ObjectID Hex"
// @Param request body AssignProtocolRequest true "Customer"
// @Success 201 {object} dto.AssignmentResponse
// @Failure 409 {object} gin.H "Active assignment already exists"
// @Router /trainer/health-protocols/{protocolId}/assignments [post]
func (h *ProtocolHandler) AssignProtocol(c *gin.Context) {
	trainerID, ok := mustUserObjectID(c)
	if !ok {
		return
	}
	protocolID, ok := pathObjectID(c, "protocolId")
	if !ok {
		return
	}
	var req AssignProtocolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	customerID, err := primitive.ObjectIDFromHex(req.CustomerID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid customerId.")
		return
	}

	assignment, err := h.protocolService.AssignProtocol(c.Request.Context(), trainerID, protocolID, customerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrActiveAssignmentExists):
			abortWithError(c, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrCustomerNotManaged):
			abortWithError(c, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrCustomerNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		default:
			h.abortProtocolLookup(c, err)
		}
		return
	}
	c.JSON(http.StatusCreated, dto.MapAssignmentToResponse(assignment))
}

// ListAssignments godoc
// @Summary List the trainer's protocol assignments
// @Tags Protocols
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.AssignmentResponse
// @Router /trainer/assignments [get]
func (h *ProtocolHandler) ListAssignments(c *gin.Context) {
	trainerID, ok := mustUserObjectID(c)
	if !ok {
		return
	}
	assignments, err := h.protocolService.ListTrainerAssignments(c.Request.Context(), trainerID)
	if err != nil {
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve assignments.")
		return
	}
	c.JSON(http.StatusOK, dto.MapAssignmentsToResponse(assignments))
}

// UpdateAssignmentStatus godoc
// @Summary Complete or cancel an assignment
// @Tags Protocols
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param assignmentId path string true "Assignment ObjectID Hex"
// @Param request body UpdateAssignmentRequest true "New status"
// @Success 200 {object} dto.AssignmentResponse
// @Failure 409 {object} gin.H "Transition not allowed"
// @Router /trainer/assignments/{assignmentId} [patch]
func (h *ProtocolHandler) UpdateAssignmentStatus(c *gin.Context) {
	trainerID, ok := mustUserObjectID(c)
	if !ok {
		return
	}
	assignmentID, ok := pathObjectID(c, "assignmentId")
	if !ok {
		return
	}
	var req UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	assignment, err := h.protocolService.UpdateAssignmentStatus(c.Request.Context(), trainerID, assignmentID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssignmentNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrAssignmentAccessDenied):
			abortWithError(c, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrInvalidStatusTransition):
			abortWithError(c, http.StatusConflict, err.Error())
		default:
			_ = c.Error(err)
			abortWithError(c, http.StatusInternalServerError, "Failed to update assignment.")
		}
		return
	}
	c.JSON(http.StatusOK, dto.MapAssignmentToResponse(assignment))
}

// ExportProtocol godoc
// @Summary Export a protocol snapshot to object storage
// @Tags Protocols
// @Produce json
// @Security BearerAuth
// @Param protocolId path string true "Protocol ObjectID Hex"
// @Success 200 {object} dto.ExportResponse
// @Failure 503 {object} gin.H "Object storage disabled"
// @Router /trainer/health-protocols/{protocolId}/export [get]
func (h *ProtocolHandler) ExportProtocol(c *gin.Context) {
	trainerID, ok := mustUserObjectID(c)
	if !ok {
		return
	}
	protocolID, ok := pathObjectID(c, "protocolId")
	if !ok {
		return
	}

	link, err := h.protocolService.ExportProtocol(c.Request.Context(), trainerID, protocolID)
	if err != nil {
		if errors.Is(err, storage.ErrStorageDisabled) {
			abortWithError(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.abortProtocolLookup(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ExportResponse{URL: link.URL, ExpiresAt: link.ExpiresAt})
}

// GetMyAssignments godoc
// @Summary List the authenticated customer's protocol assignments
// @Tags Customer
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.CustomerAssignmentResponse
// @Router /customer/assignments [get]
func (h *ProtocolHandler) GetMyAssignments(c *gin.Context) {
	customerID, ok := mustUserObjectID(c)
	if !ok {
		return
	}
	details, err := h.protocolService.ListCustomerAssignments(c.Request.Context(), customerID)
	if err != nil {
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve assignments.")
		return
	}

	resp := make([]dto.CustomerAssignmentResponse, len(details))
	for i := range details {
		resp[i].AssignmentResponse = dto.MapAssignmentToResponse(&details[i].ProtocolAssignment)
		if details[i].Protocol != nil {
			p := dto.MapProtocolToResponse(details[i].Protocol)
			resp[i].Protocol = &p
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProtocolHandler) abortProtocolLookup(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProtocolNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrProtocolAccessDenied):
		abortWithError(c, http.StatusForbidden, err.Error())
	default:
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "Failed to process protocol.")
	}
}
