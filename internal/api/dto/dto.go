// Package dto holds the JSON request and response shapes of the HTTP API.
// It has no server dependencies so the REST client can share it.
package dto

import (
	"alcyxob/health-protocols/internal/domain"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserResponse excludes sensitive info like password hash
type UserResponse struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
	CreatedAt   time.Time   `json:"createdAt"`
	CustomerIDs []string    `json:"customerIds,omitempty"`
	TrainerID   *string     `json:"trainerId,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type ProtocolResponse struct {
	ID           string                `json:"id"`
	TrainerID    string                `json:"trainerId"`
	TemplateID   string                `json:"templateId,omitempty"`
	Name         string                `json:"name"`
	Description  string                `json:"description,omitempty"`
	Type         string                `json:"type"`
	DurationDays int                   `json:"duration"`
	Intensity    string                `json:"intensity,omitempty"`
	Config       domain.ProtocolConfig `json:"config"`
	Tags         []string              `json:"tags"`
	CreatedAt    time.Time             `json:"createdAt"`
}

type AssignmentResponse struct {
	ID         string    `json:"id"`
	TrainerID  string    `json:"trainerId"`
	CustomerID string    `json:"customerId"`
	ProtocolID string    `json:"protocolId"`
	Status     string    `json:"status"`
	AssignedAt time.Time `json:"assignedAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type CreateProtocolResponse struct {
	Protocol   ProtocolResponse    `json:"protocol"`
	Assignment *AssignmentResponse `json:"assignment,omitempty"`
}

type CustomerAssignmentResponse struct {
	AssignmentResponse
	Protocol *ProtocolResponse `json:"protocol,omitempty"`
}

type ExportResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MapUserToResponse converts a domain User to a UserResponse DTO.
func MapUserToResponse(user *domain.User) UserResponse {
	if user == nil {
		return UserResponse{}
	}

	resp := UserResponse{
		ID:        user.ID.Hex(),
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
	if len(user.CustomerIDs) > 0 {
		resp.CustomerIDs = make([]string, len(user.CustomerIDs))
		for i, id := range user.CustomerIDs {
			resp.CustomerIDs[i] = id.Hex()
		}
	}
	if user.TrainerID != nil && *user.TrainerID != primitive.NilObjectID {
		trainerIDHex := user.TrainerID.Hex()
		resp.TrainerID = &trainerIDHex
	}
	return resp
}

// MapUsersToResponse converts a slice of domain.User to UserResponse DTOs.
func MapUsersToResponse(users []domain.User) []UserResponse {
	responses := make([]UserResponse, len(users))
	for i := range users {
		responses[i] = MapUserToResponse(&users[i])
	}
	return responses
}

// MapProtocolToResponse converts domain.Protocol to its DTO.
func MapProtocolToResponse(p *domain.Protocol) ProtocolResponse {
	if p == nil {
		return ProtocolResponse{}
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return ProtocolResponse{
		ID:           p.ID.Hex(),
		TrainerID:    p.TrainerID.Hex(),
		TemplateID:   p.TemplateID,
		Name:         p.Name,
		Description:  p.Description,
		Type:         p.Type,
		DurationDays: p.DurationDays,
		Intensity:    p.Intensity,
		Config:       p.Config,
		Tags:         tags,
		CreatedAt:    p.CreatedAt,
	}
}

func MapProtocolsToResponse(protocols []domain.Protocol) []ProtocolResponse {
	responses := make([]ProtocolResponse, len(protocols))
	for i := range protocols {
		responses[i] = MapProtocolToResponse(&protocols[i])
	}
	return responses
}

// MapAssignmentToResponse converts domain.ProtocolAssignment to its DTO.
func MapAssignmentToResponse(a *domain.ProtocolAssignment) AssignmentResponse {
	if a == nil {
		return AssignmentResponse{}
	}
	return AssignmentResponse{
		ID:         a.ID.Hex(),
		TrainerID:  a.TrainerID.Hex(),
		CustomerID: a.CustomerID.Hex(),
		ProtocolID: a.ProtocolID.Hex(),
		Status:     string(a.Status),
		AssignedAt: a.AssignedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func MapAssignmentsToResponse(assignments []domain.ProtocolAssignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, len(assignments))
	for i := range assignments {
		responses[i] = MapAssignmentToResponse(&assignments[i])
	}
	return responses
}
