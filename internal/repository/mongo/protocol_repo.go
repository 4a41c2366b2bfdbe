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

const protocolCollectionName = "trainer_health_protocols"

// mongoProtocolRepository implements repository.ProtocolRepository
type mongoProtocolRepository struct {
	collection *mongo.Collection
}

// NewMongoProtocolRepository creates a new Protocol repository.
func NewMongoProtocolRepository(db *mongo.Database) repository.ProtocolRepository {
	return &mongoProtocolRepository{
		collection: db.Collection(protocolCollectionName),
	}
}

// Create inserts a new protocol.
func (r *mongoProtocolRepository) Create(ctx context.Context, protocol *domain.Protocol) (primitive.ObjectID, error) {
	if protocol.TrainerID == primitive.NilObjectID || protocol.Name == "" {
		return primitive.NilObjectID, errors.New("protocol requires trainerId and name")
	}
	protocol.ID = primitive.NewObjectID()
	protocol.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, protocol)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted protocol ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single protocol by its ID.
func (r *mongoProtocolRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Protocol, error) {
	var protocol domain.Protocol
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&protocol)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &protocol, nil
}

// GetByTrainerID retrieves all protocols owned by a trainer, newest first.
func (r *mongoProtocolRepository) GetByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Protocol, error) {
	protocols := []domain.Protocol{}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"trainerId": trainerID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &protocols); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return protocols, nil
}

// Delete removes a protocol by its ID.
func (r *mongoProtocolRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureProtocolIndexes creates necessary indexes. Call during startup.
func EnsureProtocolIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "type", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
