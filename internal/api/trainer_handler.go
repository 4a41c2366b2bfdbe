package api

import (
	"alcyxob/health-protocols/internal/api/dto"
	"alcyxob/health-protocols/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// TrainerHandler serves the trainer's customer roster.
type TrainerHandler struct {
	trainerService service.TrainerService
}

func NewTrainerHandler(trainerService service.TrainerService) *TrainerHandler {
	return &TrainerHandler{trainerService: trainerService}
}

type AddCustomerRequest struct {
	CustomerEmail string `json:"customerEmail" binding:"required,email"`
}

// AddCustomerByEmail godoc
// @Summary Link a customer to the trainer by email
// @Tags Trainer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AddCustomerRequest true "Customer's email"
// @Success 200 {object} dto.UserResponse
// @Failure 403 {object} gin.H "User is not a customer, or already linked to another trainer"
// @Failure 404 {object} gin.H "Customer not found"
// @Router /trainer/customers [post]
func (h *TrainerHandler) AddCustomerByEmail(c *gin.Context) {
	var req AddCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	trainerID, ok := mustUserObjectID(c)
	if !ok {
		return
	}

	customer, err := h.trainerService.AddCustomerByEmail(c.Request.Context(), trainerID, req.CustomerEmail)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCustomerNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrCustomerNotRole), errors.Is(err, service.ErrCustomerAlreadyLinked):
			abortWithError(c, http.StatusForbidden, err.Error())
		default:
			_ = c.Error(err)
			abortWithError(c, http.StatusInternalServerError, "Failed to add customer.")
		}
		return
	}

	c.JSON(http.StatusOK, dto.MapUserToResponse(customer))
}

// GetManagedCustomers godoc
// @Summary List the trainer's customers
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.UserResponse
// @Router /trainer/customers [get]
func (h *TrainerHandler) GetManagedCustomers(c *gin.Context) {
	trainerID, ok := mustUserObjectID(c)
	if !ok {
		return
	}

	customers, err := h.trainerService.GetManagedCustomers(c.Request.Context(), trainerID)
	if err != nil {
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve customers.")
		return
	}

	c.JSON(http.StatusOK, dto.MapUsersToResponse(customers))
}
