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

type protocolRepository struct {
	db *DB
}

// NewProtocolRepository returns a repository.ProtocolRepository stored in db.
func NewProtocolRepository(db *DB) repository.ProtocolRepository {
	return &protocolRepository{db: db}
}

func (r *protocolRepository) Create(_ context.Context, protocol *domain.Protocol) (primitive.ObjectID, error) {
	if protocol.TrainerID == primitive.NilObjectID || protocol.Name == "" {
		return primitive.NilObjectID, errors.New("protocol requires trainerId and name")
	}
	protocol.ID = primitive.NewObjectID()
	protocol.CreatedAt = time.Now().UTC()

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored := *protocol
	r.db.protocols[protocol.ID] = &stored
	return protocol.ID, nil
}

func (r *protocolRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Protocol, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if p, ok := r.db.protocols[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, repository.ErrNotFound
}

func (r *protocolRepository) GetByTrainerID(_ context.Context, trainerID primitive.ObjectID) ([]domain.Protocol, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	protocols := []domain.Protocol{}
	for _, p := range r.db.protocols {
		if p.TrainerID == trainerID {
			protocols = append(protocols, *p)
		}
	}
	sort.Slice(protocols, func(i, j int) bool { return protocols[i].CreatedAt.After(protocols[j].CreatedAt) })
	return protocols, nil
}

func (r *protocolRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.protocols[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.protocols, id)
	return nil
}
