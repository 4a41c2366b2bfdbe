package memory

import (
	"alcyxob/health-protocols/internal/domain"
	"alcyxob/health-protocols/internal/repository"
	"context"
	"errors"
	"sort"
	"time"
)

type templateRepository struct {
	db *DB
}

// NewTemplateRepository returns a repository.TemplateRepository stored in db.
func NewTemplateRepository(db *DB) repository.TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) List(_ context.Context) ([]domain.ProtocolTemplate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	templates := make([]domain.ProtocolTemplate, 0, len(r.db.templates))
	for _, t := range r.db.templates {
		templates = append(templates, *t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

func (r *templateRepository) GetByID(_ context.Context, id string) (*domain.ProtocolTemplate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if t, ok := r.db.templates[id]; ok {
		c := *t
		return &c, nil
	}
	return nil, repository.ErrNotFound
}

func (r *templateRepository) Upsert(_ context.Context, tmpl *domain.ProtocolTemplate) error {
	if tmpl.ID == "" || tmpl.Name == "" {
		return errors.New("template requires id and name")
	}
	if tmpl.CreatedAt.IsZero() {
		tmpl.CreatedAt = time.Now().UTC()
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored := *tmpl
	r.db.templates[tmpl.ID] = &stored
	return nil
}

func (r *templateRepository) Count(_ context.Context) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return int64(len(r.db.templates)), nil
}
