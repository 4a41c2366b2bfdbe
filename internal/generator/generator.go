// Package generator produces free-text protocol guidance from a protocol
// request. Generation is optional: a Disabled generator is wired when no LLM
// is configured and the protocol is stored without generated content.
package generator

import (
	"alcyxob/health-protocols/internal/domain"
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrDisabled is returned by a generator that has no backend configured.
var ErrDisabled = errors.New("content generation is disabled")

// Generator turns a protocol request into human-readable guidance.
type Generator interface {
	Generate(ctx context.Context, req domain.ProtocolCreationRequest) (string, error)
}

// Disabled is the Generator used when no LLM is configured.
type Disabled struct{}

func (Disabled) Generate(context.Context, domain.ProtocolCreationRequest) (string, error) {
	return "", ErrDisabled
}

const systemInstruction = `You are an assistant to a certified fitness and nutrition trainer.
Write practical, conservative guidance for the protocol described by the trainer.
Use plain text with one short section per phase. Do not diagnose conditions and
remind the reader to consult a physician about any listed medications.`

// BuildPrompt renders the request as the user prompt sent to the model.
func BuildPrompt(req domain.ProtocolCreationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Protocol: %s\n", req.Name)
	fmt.Fprintf(&b, "Type: %s\n", req.Type)
	fmt.Fprintf(&b, "Duration: %d days\n", req.Duration)
	if req.Intensity != "" {
		fmt.Fprintf(&b, "Intensity: %s\n", req.Intensity)
	}
	if req.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", req.Description)
	}

	if hp := req.Config.HealthProfile; hp != nil {
		b.WriteString("\nHealth profile:\n")
		if hp.Age != nil {
			fmt.Fprintf(&b, "- Age: %g\n", *hp.Age)
		}
		if hp.Weight != nil {
			fmt.Fprintf(&b, "- Weight: %g kg\n", *hp.Weight)
		}
		if hp.Height != nil {
			fmt.Fprintf(&b, "- Height: %g cm\n", *hp.Height)
		}
		if hp.ActivityLevel != "" {
			fmt.Fprintf(&b, "- Activity level: %s\n", hp.ActivityLevel)
		}
		if hp.HealthGoals != "" {
			fmt.Fprintf(&b, "- Goals: %s\n", hp.HealthGoals)
		}
		if len(hp.Conditions) > 0 {
			fmt.Fprintf(&b, "- Conditions: %s\n", strings.Join(hp.Conditions, ", "))
		} else {
			b.WriteString("- Conditions: none reported\n")
		}
		if hp.Medications != "" {
			fmt.Fprintf(&b, "- Medications: %s\n", hp.Medications)
		}
	}

	if len(req.Config.Phases) > 0 {
		b.WriteString("\nPhases:\n")
		for i, p := range req.Config.Phases {
			fmt.Fprintf(&b, "%d. %s (%d days)", i+1, p.Name, p.DurationDays)
			if p.Focus != "" {
				fmt.Fprintf(&b, ": %s", p.Focus)
			}
			b.WriteString("\n")
			for _, s := range p.Supplements {
				fmt.Fprintf(&b, "   - %s %s %s\n", s.Name, s.Dosage, s.Timing)
			}
		}
	}
	return b.String()
}
