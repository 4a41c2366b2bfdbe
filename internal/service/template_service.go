package service

import (
	"alcyxob/health-protocols/internal/domain"
	"alcyxob/health-protocols/internal/repository"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var ErrTemplateNotFound = errors.New("protocol template not found")

type TemplateService interface {
	ListTemplates(ctx context.Context) ([]domain.ProtocolTemplate, error)
	GetTemplate(ctx context.Context, id string) (*domain.ProtocolTemplate, error)
	// SeedDefaults stores DefaultTemplates when no template exists yet.
	SeedDefaults(ctx context.Context) (int, error)
}

type templateService struct {
	templateRepo repository.TemplateRepository
	logger       *zap.Logger
}

// NewTemplateService creates a new instance of templateService.
func NewTemplateService(templateRepo repository.TemplateRepository, logger *zap.Logger) TemplateService {
	return &templateService{templateRepo: templateRepo, logger: logger}
}

func (s *templateService) ListTemplates(ctx context.Context) ([]domain.ProtocolTemplate, error) {
	return s.templateRepo.List(ctx)
}

func (s *templateService) GetTemplate(ctx context.Context, id string) (*domain.ProtocolTemplate, error) {
	tmpl, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return tmpl, nil
}

func (s *templateService) SeedDefaults(ctx context.Context) (int, error) {
	count, err := s.templateRepo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count templates: %w", err)
	}
	if count > 0 {
		return 0, nil
	}
	defaults := DefaultTemplates()
	for i := range defaults {
		if err := s.templateRepo.Upsert(ctx, &defaults[i]); err != nil {
			return i, fmt.Errorf("seed template %s: %w", defaults[i].ID, err)
		}
	}
	s.logger.Info("Seeded default protocol templates", zap.Int("count", len(defaults)))
	return len(defaults), nil
}

// DefaultTemplates is the built-in template catalogue.
func DefaultTemplates() []domain.ProtocolTemplate {
	return []domain.ProtocolTemplate{
		{
			ID:                  "longevity",
			Name:                "Longevity Foundations",
			Description:         "Sleep, movement and micronutrient baseline for healthy ageing.",
			Type:                "longevity",
			DefaultDurationDays: 90,
			Tags:                []string{"longevity", "baseline"},
			Phases: []domain.ProtocolPhase{
				{
					Name: "Baseline", DurationDays: 30, Focus: "Sleep hygiene and daily walking",
					Supplements: []domain.Supplement{{Name: "Vitamin D3", Dosage: "2000 IU", Timing: "with breakfast"}},
					Guidelines:  []string{"8,000 steps per day", "Consistent bedtime"},
				},
				{
					Name: "Build", DurationDays: 30, Focus: "Strength training twice weekly",
					Supplements: []domain.Supplement{{Name: "Omega-3", Dosage: "1g", Timing: "with dinner"}},
				},
				{
					Name: "Sustain", DurationDays: 30, Focus: "Habit consolidation",
					Supplements: []domain.Supplement{{Name: "Magnesium glycinate", Dosage: "200mg", Timing: "before bed"}},
				},
			},
		},
		{
			ID:                  "weight-loss",
			Name:                "Sustainable Weight Loss",
			Description:         "Moderate calorie deficit with progressive activity.",
			Type:                "weight-loss",
			DefaultDurationDays: 60,
			Tags:                []string{"weight-loss", "nutrition"},
			Phases: []domain.ProtocolPhase{
				{
					Name: "Reset", DurationDays: 14, Focus: "Food logging and whole-food meals",
					Guidelines: []string{"Protein with every meal", "No sugary drinks"},
				},
				{
					Name: "Deficit", DurationDays: 32, Focus: "300-500 kcal daily deficit",
					Supplements: []domain.Supplement{{Name: "Psyllium husk", Dosage: "5g", Timing: "before lunch"}},
				},
				{
					Name: "Maintenance", DurationDays: 14, Focus: "Reverse diet to maintenance calories",
				},
			},
		},
		{
			ID:                  "parasite-cleanse",
			Name:                "Parasite Cleanse",
			Description:         "Herbal cleanse with gut support and a rebuild phase.",
			Type:                "parasite-cleanse",
			DefaultDurationDays: 30,
			Tags:                []string{"cleanse", "gut"},
			Phases: []domain.ProtocolPhase{
				{
					Name: "Preparation", DurationDays: 7, Focus: "Remove refined sugar and alcohol",
					Supplements: []domain.Supplement{{Name: "Fiber blend", Dosage: "5g", Timing: "morning"}},
				},
				{
					Name: "Cleanse", DurationDays: 14, Focus: "Herbal protocol",
					Supplements: []domain.Supplement{
						{Name: "Black walnut hull", Dosage: "500mg", Timing: "twice daily"},
						{Name: "Wormwood", Dosage: "200mg", Timing: "twice daily"},
					},
				},
				{
					Name: "Restore", DurationDays: 9, Focus: "Microbiome rebuild",
					Supplements: []domain.Supplement{{Name: "Probiotic", Dosage: "10B CFU", Timing: "morning"}},
				},
			},
		},
		{
			ID:                  "gut-health",
			Name:                "Gut Health Reset",
			Description:         "Elimination and reintroduction for digestive comfort.",
			Type:                "gut-health",
			DefaultDurationDays: 42,
			Tags:                []string{"gut", "elimination"},
			Phases: []domain.ProtocolPhase{
				{
					Name: "Elimination", DurationDays: 21, Focus: "Remove common trigger foods",
					Supplements: []domain.Supplement{{Name: "L-glutamine", Dosage: "5g", Timing: "morning"}},
				},
				{
					Name: "Reintroduction", DurationDays: 21, Focus: "One food group every three days",
				},
			},
		},
	}
}
