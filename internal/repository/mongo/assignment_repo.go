package mongo

import (
	"alcyxob/health-protocols/internal/domain"
	"alcyxob/health-protocols/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const assignmentCollectionName = "protocol_assignments"

// mongoAssignmentRepository implements repository.AssignmentRepository
type mongoAssignmentRepository struct {
	collection *mongo.Collection
}

// NewMongoAssignmentRepository creates a new Assignment repository backed by MongoDB.
func NewMongoAssignmentRepository(db *mongo.Database) repository.AssignmentRepository {
	return &mongoAssignmentRepository{
		collection: db.Collection(assignmentCollectionName),
	}
}

// Create inserts a new assignment. The unique partial index on
// (trainerId, customerId, protocolId) for active rows turns a second active
// assignment into ErrDuplicate.
func (r *mongoAssignmentRepository) Create(ctx context.Context, assignment *domain.ProtocolAssignment) (primitive.ObjectID, error) {
	if assignment.TrainerID == primitive.NilObjectID ||
		assignment.CustomerID == primitive.NilObjectID ||
		assignment.ProtocolID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("assignment requires trainerId, customerId and protocolId")
	}

	assignment.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	assignment.AssignedAt = now
	assignment.UpdatedAt = now
	if assignment.Status == "" {
		assignment.Status = domain.StatusActive
	}

	result, err := r.collection.InsertOne(ctx, assignment)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted assignment ID")
	}
	return insertedID, nil
}

// GetByID retrieves an assignment by its ID.
func (r *mongoAssignmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ProtocolAssignment, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindActive returns the active assignment for the triple, or ErrNotFound.
func (r *mongoAssignmentRepository) FindActive(ctx context.Context, trainerID, customerID, protocolID primitive.ObjectID) (*domain.ProtocolAssignment, error) {
	return r.findOne(ctx, bson.M{
		"trainerId":  trainerID,
		"customerId": customerID,
		"protocolId": protocolID,
		"status":     domain.StatusActive,
	})
}

func (r *mongoAssignmentRepository) findOne(ctx context.Context, filter bson.M) (*domain.ProtocolAssignment, error) {
	var assignment domain.ProtocolAssignment
	err := r.collection.FindOne(ctx, filter).Decode(&assignment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &assignment, nil
}

// GetByTrainerID retrieves all assignments managed by a specific trainer.
func (r *mongoAssignmentRepository) GetByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.ProtocolAssignment, error) {
	return r.find(ctx, bson.M{"trainerId": trainerID})
}

// GetByCustomerID retrieves all assignments of a customer.
func (r *mongoAssignmentRepository) GetByCustomerID(ctx context.Context, customerID primitive.ObjectID) ([]domain.ProtocolAssignment, error) {
	return r.find(ctx, bson.M{"customerId": customerID})
}

func (r *mongoAssignmentRepository) find(ctx context.Context, filter bson.M) ([]domain.ProtocolAssignment, error) {
	assignments := []domain.ProtocolAssignment{}
	findOptions := options.Find().SetSort(bson.D{{Key: "assignedAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

// UpdateStatus changes the lifecycle status of an assignment.
func (r *mongoAssignmentRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.AssignmentStatus) error {
	update := bson.M{"$set": bson.M{
		"status":    status,
		"updatedAt": time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureAssignmentIndexes creates necessary indexes for the assignments collection.
func EnsureAssignmentIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// No duplicate active assignment per (trainer, customer, protocol).
			Keys: bson.D{
				{Key: "trainerId", Value: 1},
				{Key: "customerId", Value: 1},
				{Key: "protocolId", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": domain.StatusActive}),
		},
		{
			Keys:    bson.D{{Key: "customerId", Value: 1}, {Key: "assignedAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "assignedAt", Value: -1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
