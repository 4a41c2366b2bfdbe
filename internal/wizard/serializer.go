package wizard

import (
	"alcyxob/health-protocols/internal/domain"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// customPhaseName names the single phase of a protocol built without a template.
const customPhaseName = "Custom"

// BuildRequest maps a session at the generation step onto the request the
// backend accepts. tmpl must be the selected template, or nil for a custom
// protocol. BuildRequest is pure: equal inputs give equal requests.
func BuildRequest(s Session, tmpl *domain.ProtocolTemplate) (domain.ProtocolCreationRequest, error) {
	if s.Step != StepGeneration {
		return domain.ProtocolCreationRequest{}, ErrNotAtGeneration
	}
	if err := Validate(s); err != nil {
		return domain.ProtocolCreationRequest{}, err
	}
	if !s.CustomTemplate && (tmpl == nil || tmpl.ID != s.TemplateID) {
		return domain.ProtocolCreationRequest{}, &ValidationError{
			Step:   StepTemplateSelection,
			Fields: map[string]string{"templateId": fmt.Sprintf("template %q is not available", s.TemplateID)},
		}
	}

	days := s.Custom.DurationDays
	req := domain.ProtocolCreationRequest{
		Name:             strings.TrimSpace(s.Custom.Name),
		Description:      strings.TrimSpace(s.Custom.Description),
		Duration:         days,
		Intensity:        s.Custom.Intensity,
		TargetCustomerID: strings.TrimSpace(s.ClientID),
		Generate:         s.Generate,
		Config: domain.ProtocolConfig{
			HealthProfile: &domain.HealthProfile{
				Age:           cloneFloat(s.Health.Age),
				Weight:        cloneFloat(s.Health.Weight),
				Height:        cloneFloat(s.Health.Height),
				ActivityLevel: strings.TrimSpace(s.Health.ActivityLevel),
				HealthGoals:   strings.TrimSpace(s.Health.HealthGoals),
				Conditions:    normalizeSet(s.Health.Conditions),
				Medications:   strings.TrimSpace(s.Health.Medications),
			},
		},
	}

	if s.CustomTemplate {
		req.Type = domain.ProtocolTypeCustom
		req.Tags = normalizeSet(s.Custom.Tags)
		req.Config.Phases = []domain.ProtocolPhase{{Name: customPhaseName, DurationDays: days}}
		if req.Name == "" {
			req.Name = fmt.Sprintf("Custom protocol (%dd)", days)
		}
		return req, nil
	}

	req.Type = tmpl.Type
	req.TemplateID = tmpl.ID
	req.Tags = normalizeSet(append(cloneStrings(tmpl.Tags), s.Custom.Tags...))
	req.Config.Phases = ScalePhases(tmpl, days)
	if req.Name == "" {
		req.Name = fmt.Sprintf("%s (%dd)", tmpl.Name, days)
	}
	if req.Description == "" {
		req.Description = tmpl.Description
	}
	return req, nil
}

// Encode serializes the request built from s. Equal inputs give
// byte-identical output, so a retried submission carries the same body.
func Encode(s Session, tmpl *domain.ProtocolTemplate) ([]byte, error) {
	req, err := BuildRequest(s, tmpl)
	if err != nil {
		return nil, err
	}
	return json.Marshal(req)
}

// ScalePhases stretches or shrinks the template phases to span exactly days.
// Each phase keeps its share of the template length rounded down, never
// less than one day, and the last phase absorbs the remainder. When days is
// smaller than the number of phases only the first days phases are kept,
// one day each.
func ScalePhases(tmpl *domain.ProtocolTemplate, days int) []domain.ProtocolPhase {
	if days <= 0 {
		return []domain.ProtocolPhase{}
	}
	if len(tmpl.Phases) == 0 {
		return []domain.ProtocolPhase{{Name: tmpl.Name, DurationDays: days}}
	}

	phases := tmpl.Phases
	if len(phases) > days {
		phases = phases[:days]
	}
	total := 0
	for _, p := range phases {
		total += p.DurationDays
	}

	scaled := make([]domain.ProtocolPhase, len(phases))
	remaining := days
	for i, p := range phases {
		scaled[i] = clonePhase(p)
		if i == len(phases)-1 {
			scaled[i].DurationDays = remaining
			break
		}

		share := 1
		if total > 0 {
			share = p.DurationDays * days / total
		}
		// Leave at least one day for every phase still to come.
		share = max(1, min(share, remaining-(len(phases)-1-i)))
		scaled[i].DurationDays = share
		remaining -= share
	}
	return scaled
}

func clonePhase(p domain.ProtocolPhase) domain.ProtocolPhase {
	if p.Supplements != nil {
		p.Supplements = append([]domain.Supplement(nil), p.Supplements...)
	}
	p.Guidelines = cloneStrings(p.Guidelines)
	return p
}

// normalizeSet trims, deduplicates and sorts values. The result is never nil.
func normalizeSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
