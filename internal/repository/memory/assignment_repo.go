package memory

import (
	"alcyxob/health-protocols/internal/domain"
	"alcyxob/health-protocols/internal/repository"
	"context"
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type assignmentRepository struct {
	db *DB
}

// NewAssignmentRepository returns a repository.AssignmentRepository stored in db.
func NewAssignmentRepository(db *DB) repository.AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) Create(_ context.Context, assignment *domain.ProtocolAssignment) (primitive.ObjectID, error) {
	if assignment.TrainerID == primitive.NilObjectID ||
		assignment.CustomerID == primitive.NilObjectID ||
		assignment.ProtocolID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("assignment requires trainerId, customerId and protocolId")
	}
	if assignment.Status == "" {
		assignment.Status = domain.StatusActive
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if assignment.Status == domain.StatusActive && r.activeLocked(assignment.TrainerID, assignment.CustomerID, assignment.ProtocolID) != nil {
		return primitive.NilObjectID, repository.ErrDuplicate
	}

	assignment.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	assignment.AssignedAt = now
	assignment.UpdatedAt = now

	stored := *assignment
	r.db.assignments[assignment.ID] = &stored
	return assignment.ID, nil
}

func (r *assignmentRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.ProtocolAssignment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if a, ok := r.db.assignments[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, repository.ErrNotFound
}

func (r *assignmentRepository) FindActive(_ context.Context, trainerID, customerID, protocolID primitive.ObjectID) (*domain.ProtocolAssignment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if a := r.activeLocked(trainerID, customerID, protocolID); a != nil {
		c := *a
		return &c, nil
	}
	return nil, repository.ErrNotFound
}

func (r *assignmentRepository) activeLocked(trainerID, customerID, protocolID primitive.ObjectID) *domain.ProtocolAssignment {
	for _, a := range r.db.assignments {
		if a.Status == domain.StatusActive &&
			a.TrainerID == trainerID && a.CustomerID == customerID && a.ProtocolID == protocolID {
			return a
		}
	}
	return nil
}

func (r *assignmentRepository) GetByTrainerID(_ context.Context, trainerID primitive.ObjectID) ([]domain.ProtocolAssignment, error) {
	return r.filter(func(a *domain.ProtocolAssignment) bool { return a.TrainerID == trainerID }), nil
}

func (r *assignmentRepository) GetByCustomerID(_ context.Context, customerID primitive.ObjectID) ([]domain.ProtocolAssignment, error) {
	return r.filter(func(a *domain.ProtocolAssignment) bool { return a.CustomerID == customerID }), nil
}

func (r *assignmentRepository) filter(keep func(*domain.ProtocolAssignment) bool) []domain.ProtocolAssignment {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []domain.ProtocolAssignment{}
	for _, a := range r.db.assignments {
		if keep(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.After(out[j].AssignedAt) })
	return out
}

func (r *assignmentRepository) UpdateStatus(_ context.Context, id primitive.ObjectID, status domain.AssignmentStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	a, ok := r.db.assignments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if status == domain.StatusActive && a.Status != domain.StatusActive {
		if r.activeLocked(a.TrainerID, a.CustomerID, a.ProtocolID) != nil {
			return repository.ErrDuplicate
		}
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	return nil
}
