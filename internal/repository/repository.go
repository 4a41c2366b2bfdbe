package repository

import (
	"alcyxob/health-protocols/internal/domain"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	AddCustomerIDToTrainer(ctx context.Context, trainerID, customerID primitive.ObjectID) error
	GetCustomersByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.User, error)
	SetTrainerForCustomer(ctx context.Context, customerID, trainerID primitive.ObjectID) error
}

// TemplateRepository defines the interface for protocol templates.
type TemplateRepository interface {
	List(ctx context.Context) ([]domain.ProtocolTemplate, error)
	GetByID(ctx context.Context, id string) (*domain.ProtocolTemplate, error)
	// Upsert inserts the template or replaces the stored one with the same ID.
	Upsert(ctx context.Context, tmpl *domain.ProtocolTemplate) error
	Count(ctx context.Context) (int64, error)
}

// ProtocolRepository defines the interface for trainer health protocols.
type ProtocolRepository interface {
	Create(ctx context.Context, protocol *domain.Protocol) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Protocol, error)
	GetByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Protocol, error)
	// Delete removes a protocol. Used only to undo a creation whose
	// assignment could not be written.
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// AssignmentRepository defines the interface for protocol assignments.
// Create returns ErrDuplicate if an active assignment for the same
// (trainer, customer, protocol) triple already exists.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.ProtocolAssignment) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ProtocolAssignment, error)
	FindActive(ctx context.Context, trainerID, customerID, protocolID primitive.ObjectID) (*domain.ProtocolAssignment, error)
	GetByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.ProtocolAssignment, error)
	GetByCustomerID(ctx context.Context, customerID primitive.ObjectID) ([]domain.ProtocolAssignment, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.AssignmentStatus) error
}
