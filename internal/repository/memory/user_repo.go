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

type userRepository struct {
	db *DB
}

// NewUserRepository returns a repository.UserRepository stored in db.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" || user.Role == "" {
		return primitive.NilObjectID, errors.New("user email, password hash, and role are required")
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.Email == user.Email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	r.db.users[user.ID] = &stored
	return user.ID, nil
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, u := range r.db.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if u, ok := r.db.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) AddCustomerIDToTrainer(_ context.Context, trainerID, customerID primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	trainer, ok := r.db.users[trainerID]
	if !ok || !trainer.IsTrainer() {
		return repository.ErrNotFound
	}
	for _, id := range trainer.CustomerIDs {
		if id == customerID {
			return nil
		}
	}
	trainer.CustomerIDs = append(trainer.CustomerIDs, customerID)
	trainer.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *userRepository) GetCustomersByTrainerID(_ context.Context, trainerID primitive.ObjectID) ([]domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	trainer, ok := r.db.users[trainerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !trainer.IsTrainer() {
		return nil, errors.New("user is not a trainer")
	}

	customers := make([]domain.User, 0, len(trainer.CustomerIDs))
	for _, id := range trainer.CustomerIDs {
		if u, ok := r.db.users[id]; ok {
			customers = append(customers, *copyUser(u))
		}
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].Name < customers[j].Name })
	return customers, nil
}

func (r *userRepository) SetTrainerForCustomer(_ context.Context, customerID, trainerID primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	customer, ok := r.db.users[customerID]
	if !ok || !customer.IsCustomer() {
		return repository.ErrNotFound
	}
	id := trainerID
	customer.TrainerID = &id
	customer.UpdatedAt = time.Now().UTC()
	return nil
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	c.CustomerIDs = append([]primitive.ObjectID(nil), u.CustomerIDs...)
	if u.TrainerID != nil {
		id := *u.TrainerID
		c.TrainerID = &id
	}
	return &c
}
