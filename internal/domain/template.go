package domain

import "time"

// ProtocolTemplate is a reusable starting point for a health protocol.
// Templates are addressed by a stable slug (e.g. "weight-loss") rather than a generated ID.
type ProtocolTemplate struct {
	ID                  string          `bson:"_id" json:"id"`
	Name                string          `bson:"name" json:"name"`
	Description         string          `bson:"description,omitempty" json:"description,omitempty"`
	Type                string          `bson:"type" json:"type"` // e.g. "longevity", "parasite-cleanse"
	DefaultDurationDays int             `bson:"defaultDurationDays" json:"defaultDurationDays"`
	Phases              []ProtocolPhase `bson:"phases" json:"phases"`
	Tags                []string        `bson:"tags,omitempty" json:"tags,omitempty"`
	CreatedAt           time.Time       `bson:"createdAt" json:"createdAt"`
}

// TotalDays is the sum of the template's phase lengths.
func (t *ProtocolTemplate) TotalDays() int {
	total := 0
	for _, p := range t.Phases {
		total += p.DurationDays
	}
	return total
}
