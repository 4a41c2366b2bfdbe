package mongo

import (
	"alcyxob/health-protocols/internal/domain"
	"alcyxob/health-protocols/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const templateCollectionName = "protocol_templates"

// mongoTemplateRepository implements repository.TemplateRepository
type mongoTemplateRepository struct {
	collection *mongo.Collection
}

// NewMongoTemplateRepository creates a new template repository backed by MongoDB.
func NewMongoTemplateRepository(db *mongo.Database) repository.TemplateRepository {
	return &mongoTemplateRepository{
		collection: db.Collection(templateCollectionName),
	}
}

// List returns every template ordered by name.
func (r *mongoTemplateRepository) List(ctx context.Context) ([]domain.ProtocolTemplate, error) {
	templates := []domain.ProtocolTemplate{}
	findOptions := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return templates, nil
}

// GetByID retrieves a template by its slug.
func (r *mongoTemplateRepository) GetByID(ctx context.Context, id string) (*domain.ProtocolTemplate, error) {
	var tmpl domain.ProtocolTemplate
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&tmpl)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &tmpl, nil
}

// Upsert replaces the template document with the same slug, inserting it if missing.
func (r *mongoTemplateRepository) Upsert(ctx context.Context, tmpl *domain.ProtocolTemplate) error {
	if tmpl.ID == "" || tmpl.Name == "" {
		return errors.New("template requires id and name")
	}
	if tmpl.CreatedAt.IsZero() {
		tmpl.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": tmpl.ID}, tmpl, options.Replace().SetUpsert(true))
	return err
}

// Count returns the number of stored templates.
func (r *mongoTemplateRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}
