package wizard

import (
	"alcyxob/health-protocols/internal/domain"
	"alcyxob/health-protocols/internal/service"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weightLossTemplate() *domain.ProtocolTemplate {
	return &domain.ProtocolTemplate{
		ID:                  "weight-loss",
		Name:                "Sustainable Weight Loss",
		Description:         "Moderate calorie deficit.",
		Type:                "weight-loss",
		DefaultDurationDays: 60,
		Tags:                []string{"weight-loss", "nutrition"},
		Phases: []domain.ProtocolPhase{
			{Name: "Reset", DurationDays: 14},
			{Name: "Deficit", DurationDays: 32, Supplements: []domain.Supplement{{Name: "Psyllium husk", Dosage: "5g"}}},
			{Name: "Maintenance", DurationDays: 14},
		},
	}
}

func generationSession() Session {
	return Session{
		Step:       StepGeneration,
		ClientID:   "c1",
		TemplateID: "weight-loss",
		Health:     HealthInfo{Conditions: []string{}},
		Custom:     Customization{DurationDays: 30},
	}
}

func TestEncode_Deterministic(t *testing.T) {
	s := generationSession()
	tmpl := weightLossTemplate()

	first, err := Encode(s, tmpl)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Encode(s, tmpl)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	var req domain.ProtocolCreationRequest
	require.NoError(t, json.Unmarshal(first, &req))
	assert.Equal(t, "c1", req.TargetCustomerID)
	assert.Equal(t, 30, req.Duration)
	assert.Contains(t, string(first), `"conditions":[]`)
}

func TestBuildRequest_Template(t *testing.T) {
	s := generationSession()
	s.Custom.Tags = []string{" nutrition ", "client-pick", ""}
	s.Health.Conditions = []string{"hypertension", " asthma", "hypertension"}
	s.Health.Age = floatPtr(52)
	s.Generate = true

	req, err := BuildRequest(s, weightLossTemplate())
	require.NoError(t, err)

	assert.Equal(t, "Sustainable Weight Loss (30d)", req.Name)
	assert.Equal(t, "Moderate calorie deficit.", req.Description)
	assert.Equal(t, "weight-loss", req.Type)
	assert.Equal(t, "weight-loss", req.TemplateID)
	assert.True(t, req.Generate)
	assert.Equal(t, []string{"client-pick", "nutrition", "weight-loss"}, req.Tags)
	require.NotNil(t, req.Config.HealthProfile)
	assert.Equal(t, []string{"asthma", "hypertension"}, req.Config.HealthProfile.Conditions)
	assert.Equal(t, 52.0, *req.Config.HealthProfile.Age)

	require.Len(t, req.Config.Phases, 3)
	assert.Equal(t, 7, req.Config.Phases[0].DurationDays)
	assert.Equal(t, 16, req.Config.Phases[1].DurationDays)
	assert.Equal(t, 7, req.Config.Phases[2].DurationDays)
	assert.Equal(t, "Psyllium husk", req.Config.Phases[1].Supplements[0].Name)
}

func TestBuildRequest_DoesNotAliasInputs(t *testing.T) {
	s := generationSession()
	s.Health.Age = floatPtr(40)
	tmpl := weightLossTemplate()

	req, err := BuildRequest(s, tmpl)
	require.NoError(t, err)
	req.Config.Phases[1].Supplements[0].Name = "changed"
	*req.Config.HealthProfile.Age = 99

	assert.Equal(t, "Psyllium husk", tmpl.Phases[1].Supplements[0].Name)
	assert.Equal(t, 40.0, *s.Health.Age)
}

func TestBuildRequest_Custom(t *testing.T) {
	s := generationSession().WithCustomTemplate()
	s.Custom = Customization{DurationDays: 14, Intensity: domain.IntensityLow, Tags: []string{"b", "a", "b"}}

	req, err := BuildRequest(s, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolTypeCustom, req.Type)
	assert.Empty(t, req.TemplateID)
	assert.Equal(t, "Custom protocol (14d)", req.Name)
	assert.Equal(t, "low", req.Intensity)
	assert.Equal(t, []string{"a", "b"}, req.Tags)
	assert.Equal(t, []domain.ProtocolPhase{{Name: "Custom", DurationDays: 14}}, req.Config.Phases)
}

func TestBuildRequest_ExplicitName(t *testing.T) {
	s := generationSession()
	s.Custom.Name = "  Cal's spring cut "
	s.Custom.Description = "Tailored"

	req, err := BuildRequest(s, weightLossTemplate())
	require.NoError(t, err)
	assert.Equal(t, "Cal's spring cut", req.Name)
	assert.Equal(t, "Tailored", req.Description)
}

func TestBuildRequest_Rejects(t *testing.T) {
	t.Run("not at generation", func(t *testing.T) {
		s := generationSession()
		s.Step = StepCustomization
		_, err := BuildRequest(s, weightLossTemplate())
		assert.ErrorIs(t, err, ErrNotAtGeneration)
	})

	t.Run("incomplete step", func(t *testing.T) {
		s := generationSession()
		s.Custom.DurationDays = 0
		_, err := BuildRequest(s, weightLossTemplate())
		requireValidationError(t, err, StepCustomization, "duration")
	})

	t.Run("template mismatch", func(t *testing.T) {
		s := generationSession().WithTemplate("longevity")
		_, err := BuildRequest(s, weightLossTemplate())
		requireValidationError(t, err, StepTemplateSelection, "templateId")

		_, err = BuildRequest(s, nil)
		requireValidationError(t, err, StepTemplateSelection, "templateId")
	})
}

func TestScalePhases_SpansDuration(t *testing.T) {
	for _, tmpl := range service.DefaultTemplates() {
		for _, days := range []int{1, 2, 3, 7, 30, 42, 60, 90, 365} {
			phases := ScalePhases(&tmpl, days)
			require.Len(t, phases, min(len(tmpl.Phases), days), "%s/%d", tmpl.ID, days)

			total := 0
			for i, p := range phases {
				assert.GreaterOrEqual(t, p.DurationDays, 1, "%s/%d phase %d", tmpl.ID, days, i)
				assert.Equal(t, tmpl.Phases[i].Name, p.Name)
				total += p.DurationDays
			}
			assert.Equal(t, days, total, "%s/%d", tmpl.ID, days)
		}
	}
}

func TestScalePhases_DefaultDurationKeepsTemplate(t *testing.T) {
	for _, tmpl := range service.DefaultTemplates() {
		assert.Equal(t, tmpl.Phases, ScalePhases(&tmpl, tmpl.TotalDays()), tmpl.ID)
	}
}

func TestScalePhases_NoPhases(t *testing.T) {
	tmpl := &domain.ProtocolTemplate{ID: "blank", Name: "Blank"}
	assert.Equal(t, []domain.ProtocolPhase{{Name: "Blank", DurationDays: 10}}, ScalePhases(tmpl, 10))
}
