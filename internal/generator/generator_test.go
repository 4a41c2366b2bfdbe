package generator

import (
	"alcyxob/health-protocols/internal/domain"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	age := 42.0
	req := domain.ProtocolCreationRequest{
		Name:      "Spring Reset",
		Type:      "parasite-cleanse",
		Duration:  30,
		Intensity: domain.IntensityModerate,
		Config: domain.ProtocolConfig{
			Phases: []domain.ProtocolPhase{
				{Name: "Prep", DurationDays: 7, Supplements: []domain.Supplement{{Name: "Fiber", Dosage: "5g", Timing: "morning"}}},
				{Name: "Cleanse", DurationDays: 23},
			},
			HealthProfile: &domain.HealthProfile{Age: &age, Conditions: []string{}},
		},
	}

	prompt := BuildPrompt(req)
	assert.Contains(t, prompt, "Protocol: Spring Reset")
	assert.Contains(t, prompt, "Duration: 30 days")
	assert.Contains(t, prompt, "Intensity: moderate")
	assert.Contains(t, prompt, "- Age: 42")
	assert.Contains(t, prompt, "- Conditions: none reported")
	assert.Contains(t, prompt, "1. Prep (7 days)")
	assert.Contains(t, prompt, "Fiber 5g morning")
	assert.Equal(t, prompt, BuildPrompt(req))
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Generate(context.Background(), domain.ProtocolCreationRequest{})
	assert.ErrorIs(t, err, ErrDisabled)
}
