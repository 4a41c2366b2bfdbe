package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentStatus type for assignment lifecycle
type AssignmentStatus string

const (
	StatusActive    AssignmentStatus = "active"
	StatusCompleted AssignmentStatus = "completed"
	StatusCancelled AssignmentStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s AssignmentStatus) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ProtocolAssignment links a trainer-owned Protocol to one of the trainer's customers.
// At most one active assignment exists per (TrainerID, CustomerID, ProtocolID).
type ProtocolAssignment struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrainerID  primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	CustomerID primitive.ObjectID `bson:"customerId" json:"customerId"`
	ProtocolID primitive.ObjectID `bson:"protocolId" json:"protocolId"`
	Status     AssignmentStatus   `bson:"status" json:"status"`
	AssignedAt time.Time          `bson:"assignedAt" json:"assignedAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CanTransitionTo reports whether the assignment may move to next.
// Only active assignments change state; completed and cancelled are final.
func (a *ProtocolAssignment) CanTransitionTo(next AssignmentStatus) bool {
	if !next.Valid() {
		return false
	}
	if a.Status == next {
		return true
	}
	return a.Status == StatusActive
}
