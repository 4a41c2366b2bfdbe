package service

import (
	"alcyxob/health-protocols/internal/domain"
	"alcyxob/health-protocols/internal/generator"
	"alcyxob/health-protocols/internal/repository"
	"alcyxob/health-protocols/internal/storage"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrInvalidProtocol         = errors.New("invalid protocol request")
	ErrProtocolNotFound        = errors.New("protocol not found")
	ErrProtocolAccessDenied    = errors.New("access denied to this protocol")
	ErrAssignmentNotFound      = errors.New("assignment not found")
	ErrAssignmentAccessDenied  = errors.New("access denied to modify this assignment")
	ErrActiveAssignmentExists  = errors.New("customer already has an active assignment for this protocol")
	ErrInvalidStatusTransition = errors.New("invalid assignment status transition")
	ErrGenerationFailed        = errors.New("protocol content generation failed")
)

// exportURLExpiry is how long a protocol export link stays valid.
const exportURLExpiry = time.Hour

// CreatedProtocol is the result of a protocol creation; Assignment is nil
// when the request had no target customer.
type CreatedProtocol struct {
	Protocol   *domain.Protocol
	Assignment *domain.ProtocolAssignment
}

// ExportLink is a presigned download link for a protocol snapshot.
type ExportLink struct {
	URL       string
	ExpiresAt time.Time
}

// AssignmentDetails combines an assignment with the assigned protocol.
type AssignmentDetails struct {
	domain.ProtocolAssignment
	Protocol *domain.Protocol `json:"protocol,omitempty"`
}

type ProtocolService interface {
	CreateProtocol(ctx context.Context, trainerID primitive.ObjectID, req domain.ProtocolCreationRequest) (*CreatedProtocol, error)
	GetProtocol(ctx context.Context, trainerID, protocolID primitive.ObjectID) (*domain.Protocol, error)
	ListProtocols(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Protocol, error)
	AssignProtocol(ctx context.Context, trainerID, protocolID, customerID primitive.ObjectID) (*domain.ProtocolAssignment, error)
	ListTrainerAssignments(ctx context.Context, trainerID primitive.ObjectID) ([]domain.ProtocolAssignment, error)
	UpdateAssignmentStatus(ctx context.Context, trainerID, assignmentID primitive.ObjectID, status domain.AssignmentStatus) (*domain.ProtocolAssignment, error)
	ListCustomerAssignments(ctx context.Context, customerID primitive.ObjectID) ([]AssignmentDetails, error)
	ExportProtocol(ctx context.Context, trainerID, protocolID primitive.ObjectID) (*ExportLink, error)
}

// protocolService implements the ProtocolService interface.
type protocolService struct {
	userRepo       repository.UserRepository
	templateRepo   repository.TemplateRepository
	protocolRepo   repository.ProtocolRepository
	assignmentRepo repository.AssignmentRepository
	generator      generator.Generator
	fileStorage    storage.FileStorage // nil when object storage is disabled
	logger         *zap.Logger
}

// NewProtocolService creates a new instance of protocolService.
func NewProtocolService(
	userRepo repository.UserRepository,
	templateRepo repository.TemplateRepository,
	protocolRepo repository.ProtocolRepository,
	assignmentRepo repository.AssignmentRepository,
	gen generator.Generator,
	fileStorage storage.FileStorage,
	logger *zap.Logger,
) ProtocolService {
	if gen == nil {
		gen = generator.Disabled{}
	}
	return &protocolService{
		userRepo:       userRepo,
		templateRepo:   templateRepo,
		protocolRepo:   protocolRepo,
		assignmentRepo: assignmentRepo,
		generator:      gen,
		fileStorage:    fileStorage,
		logger:         logger,
	}
}

// CreateProtocol persists a protocol built by the wizard and, when the request
// targets a customer, an active assignment for that customer.
func (s *protocolService) CreateProtocol(ctx context.Context, trainerID primitive.ObjectID, req domain.ProtocolCreationRequest) (*CreatedProtocol, error) {
	if trainerID == primitive.NilObjectID {
		return nil, errors.New("trainer ID is required")
	}
	if strings.TrimSpace(req.Name) == "" || req.Duration <= 0 {
		return nil, fmt.Errorf("%w: name and a positive duration are required", ErrInvalidProtocol)
	}
	if phaseDays := sumPhaseDays(req.Config.Phases); phaseDays > req.Duration {
		return nil, fmt.Errorf("%w: phases span %d days but duration is %d", ErrInvalidProtocol, phaseDays, req.Duration)
	}

	if req.TemplateID != "" {
		if _, err := s.templateRepo.GetByID(ctx, req.TemplateID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrTemplateNotFound
			}
			return nil, err
		}
	}

	var customerID primitive.ObjectID
	if req.TargetCustomerID != "" {
		id, err := primitive.ObjectIDFromHex(req.TargetCustomerID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid targetCustomerId", ErrInvalidProtocol)
		}
		if err := s.checkManaged(ctx, trainerID, id); err != nil {
			return nil, err
		}
		customerID = id
	}

	config := req.Config
	if req.Generate {
		content, err := s.generator.Generate(ctx, req)
		switch {
		case errors.Is(err, generator.ErrDisabled):
			s.logger.Warn("Generation requested but no LLM is configured", zap.String("trainerId", trainerID.Hex()))
		case err != nil:
			s.logger.Error("Protocol generation failed", zap.String("trainerId", trainerID.Hex()), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		default:
			config.GeneratedContent = content
		}
	}

	protocol := &domain.Protocol{
		TrainerID:    trainerID,
		TemplateID:   req.TemplateID,
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Type:         req.Type,
		DurationDays: req.Duration,
		Intensity:    req.Intensity,
		Config:       config,
		Tags:         req.Tags,
	}
	protocolID, err := s.protocolRepo.Create(ctx, protocol)
	if err != nil {
		return nil, err
	}
	protocol.ID = protocolID
	s.logger.Info("Protocol created",
		zap.String("protocolId", protocolID.Hex()),
		zap.String("trainerId", trainerID.Hex()),
		zap.String("type", protocol.Type),
		zap.Int("durationDays", protocol.DurationDays))

	result := &CreatedProtocol{Protocol: protocol}
	if customerID != primitive.NilObjectID {
		assignment, err := s.createAssignment(ctx, trainerID, protocolID, customerID)
		if err != nil {
			// No transaction spans both writes. Remove the protocol so a
			// resubmitted request does not leave duplicates behind.
			if delErr := s.protocolRepo.Delete(context.WithoutCancel(ctx), protocolID); delErr != nil {
				s.logger.Error("Failed to roll back protocol without assignment",
					zap.String("protocolId", protocolID.Hex()), zap.Error(delErr))
			} else {
				s.logger.Warn("Rolled back protocol after assignment failure",
					zap.String("protocolId", protocolID.Hex()), zap.Error(err))
			}
			return nil, err
		}
		result.Assignment = assignment
	}
	return result, nil
}

// GetProtocol returns a protocol owned by the trainer.
func (s *protocolService) GetProtocol(ctx context.Context, trainerID, protocolID primitive.ObjectID) (*domain.Protocol, error) {
	protocol, err := s.protocolRepo.GetByID(ctx, protocolID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProtocolNotFound
		}
		return nil, err
	}
	if protocol.TrainerID != trainerID {
		return nil, ErrProtocolAccessDenied
	}
	return protocol, nil
}

func (s *protocolService) ListProtocols(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Protocol, error) {
	if trainerID == primitive.NilObjectID {
		return nil, errors.New("trainer ID is required")
	}
	return s.protocolRepo.GetByTrainerID(ctx, trainerID)
}

// AssignProtocol assigns an existing protocol to one of the trainer's customers.
func (s *protocolService) AssignProtocol(ctx context.Context, trainerID, protocolID, customerID primitive.ObjectID) (*domain.ProtocolAssignment, error) {
	if _, err := s.GetProtocol(ctx, trainerID, protocolID); err != nil {
		return nil, err
	}
	if err := s.checkManaged(ctx, trainerID, customerID); err != nil {
		return nil, err
	}
	return s.createAssignment(ctx, trainerID, protocolID, customerID)
}

func (s *protocolService) createAssignment(ctx context.Context, trainerID, protocolID, customerID primitive.ObjectID) (*domain.ProtocolAssignment, error) {
	_, err := s.assignmentRepo.FindActive(ctx, trainerID, customerID, protocolID)
	if err == nil {
		return nil, ErrActiveAssignmentExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	assignment := &domain.ProtocolAssignment{
		TrainerID:  trainerID,
		CustomerID: customerID,
		ProtocolID: protocolID,
		Status:     domain.StatusActive,
	}
	id, err := s.assignmentRepo.Create(ctx, assignment)
	if err != nil {
		// The storage-level uniqueness check catches concurrent assigners.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrActiveAssignmentExists
		}
		return nil, err
	}
	assignment.ID = id
	return assignment, nil
}

func (s *protocolService) ListTrainerAssignments(ctx context.Context, trainerID primitive.ObjectID) ([]domain.ProtocolAssignment, error) {
	if trainerID == primitive.NilObjectID {
		return nil, errors.New("trainer ID is required")
	}
	return s.assignmentRepo.GetByTrainerID(ctx, trainerID)
}

// UpdateAssignmentStatus moves an active assignment to completed or cancelled.
func (s *protocolService) UpdateAssignmentStatus(ctx context.Context, trainerID, assignmentID primitive.ObjectID, status domain.AssignmentStatus) (*domain.ProtocolAssignment, error) {
	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	if assignment.TrainerID != trainerID {
		return nil, ErrAssignmentAccessDenied
	}
	if !assignment.CanTransitionTo(status) {
		return nil, ErrInvalidStatusTransition
	}
	if assignment.Status == status {
		return assignment, nil
	}

	if err = s.assignmentRepo.UpdateStatus(ctx, assignmentID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	return s.assignmentRepo.GetByID(ctx, assignmentID)
}

// ListCustomerAssignments returns the customer's assignments with protocol details.
func (s *protocolService) ListCustomerAssignments(ctx context.Context, customerID primitive.ObjectID) ([]AssignmentDetails, error) {
	assignments, err := s.assignmentRepo.GetByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	details := make([]AssignmentDetails, 0, len(assignments))
	protocols := make(map[primitive.ObjectID]*domain.Protocol)
	for _, a := range assignments {
		p, ok := protocols[a.ProtocolID]
		if !ok {
			p, err = s.protocolRepo.GetByID(ctx, a.ProtocolID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
			protocols[a.ProtocolID] = p
		}
		details = append(details, AssignmentDetails{ProtocolAssignment: a, Protocol: p})
	}
	return details, nil
}

// ExportProtocol uploads a JSON snapshot of the protocol and returns a
// presigned download link for it. The snapshot is removed again if no link
// can be issued.
func (s *protocolService) ExportProtocol(ctx context.Context, trainerID, protocolID primitive.ObjectID) (*ExportLink, error) {
	if s.fileStorage == nil {
		return nil, storage.ErrStorageDisabled
	}
	protocol, err := s.GetProtocol(ctx, trainerID, protocolID)
	if err != nil {
		return nil, err
	}

	body, err := json.MarshalIndent(protocol, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode protocol: %w", err)
	}

	objectKey := path.Join("protocols", trainerID.Hex(), protocolID.Hex(), uuid.NewString()+".json")
	if err = s.fileStorage.PutObject(ctx, objectKey, "application/json", body); err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}
	expiresAt := time.Now().UTC().Add(exportURLExpiry)
	url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, objectKey, exportURLExpiry)
	if err != nil {
		if delErr := s.fileStorage.DeleteObject(context.WithoutCancel(ctx), objectKey); delErr != nil {
			s.logger.Warn("Failed to remove unreachable export",
				zap.String("key", objectKey), zap.Error(delErr))
		}
		return nil, fmt.Errorf("presign export: %w", err)
	}
	return &ExportLink{URL: url, ExpiresAt: expiresAt}, nil
}

func (s *protocolService) checkManaged(ctx context.Context, trainerID, customerID primitive.ObjectID) error {
	customer, err := s.userRepo.GetByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCustomerNotFound
		}
		return err
	}
	if !customer.ManagedBy(trainerID) {
		return ErrCustomerNotManaged
	}
	return nil
}

func sumPhaseDays(phases []domain.ProtocolPhase) int {
	total := 0
	for _, p := range phases {
		total += p.DurationDays
	}
	return total
}
