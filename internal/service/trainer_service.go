package service

import (
	"alcyxob/health-protocols/internal/domain"
	"alcyxob/health-protocols/internal/repository"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrCustomerNotFound      = errors.New("customer user not found")
	ErrCustomerNotRole       = errors.New("user found but is not a customer")
	ErrCustomerAlreadyLinked = errors.New("customer is already linked to another trainer")
	ErrCustomerNotManaged    = errors.New("customer is not managed by this trainer")
)

type TrainerService interface {
	AddCustomerByEmail(ctx context.Context, trainerID primitive.ObjectID, customerEmail string) (*domain.User, error)
	GetManagedCustomers(ctx context.Context, trainerID primitive.ObjectID) ([]domain.User, error)
}

// trainerService implements the TrainerService interface.
type trainerService struct {
	userRepo repository.UserRepository
	logger   *zap.Logger
}

// NewTrainerService creates a new instance of trainerService.
func NewTrainerService(userRepo repository.UserRepository, logger *zap.Logger) TrainerService {
	return &trainerService{userRepo: userRepo, logger: logger}
}

// AddCustomerByEmail finds a customer by email and links them to the trainer.
func (s *trainerService) AddCustomerByEmail(ctx context.Context, trainerID primitive.ObjectID, customerEmail string) (*domain.User, error) {
	customerEmail = normalizeEmail(customerEmail)
	if trainerID == primitive.NilObjectID || customerEmail == "" {
		return nil, errors.New("trainer ID and customer email are required")
	}

	customer, err := s.userRepo.GetByEmail(ctx, customerEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	if !customer.IsCustomer() {
		return nil, ErrCustomerNotRole
	}

	if customer.TrainerID != nil && *customer.TrainerID != primitive.NilObjectID {
		if *customer.TrainerID == trainerID {
			customer.PasswordHash = ""
			return customer, nil
		}
		return nil, ErrCustomerAlreadyLinked
	}

	if err = s.userRepo.AddCustomerIDToTrainer(ctx, trainerID, customer.ID); err != nil {
		return nil, err
	}
	if err = s.userRepo.SetTrainerForCustomer(ctx, customer.ID, trainerID); err != nil {
		// The trainer side is already written; the link is repaired by retrying the call.
		s.logger.Error("Customer link half-written",
			zap.String("trainerId", trainerID.Hex()),
			zap.String("customerId", customer.ID.Hex()),
			zap.Error(err))
		return nil, err
	}

	customer.TrainerID = &trainerID
	customer.PasswordHash = ""
	return customer, nil
}

// GetManagedCustomers retrieves the list of customers linked to the trainer.
func (s *trainerService) GetManagedCustomers(ctx context.Context, trainerID primitive.ObjectID) ([]domain.User, error) {
	if trainerID == primitive.NilObjectID {
		return nil, errors.New("trainer ID is required")
	}
	customers, err := s.userRepo.GetCustomersByTrainerID(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	for i := range customers {
		customers[i].PasswordHash = ""
	}
	return customers, nil
}
