package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProtocolTypeCustom is used for protocols built without a template.
const ProtocolTypeCustom = "custom"

// Intensity levels accepted for a protocol.
const (
	IntensityLow      = "low"
	IntensityModerate = "moderate"
	IntensityHigh     = "high"
)

// Supplement is a single supplement entry inside a protocol phase.
type Supplement struct {
	Name   string `bson:"name" json:"name"`
	Dosage string `bson:"dosage,omitempty" json:"dosage,omitempty"`
	Timing string `bson:"timing,omitempty" json:"timing,omitempty"`
}

// ProtocolPhase is one time-boxed stage of a protocol.
type ProtocolPhase struct {
	Name         string       `bson:"name" json:"name"`
	DurationDays int          `bson:"durationDays" json:"durationDays"`
	Focus        string       `bson:"focus,omitempty" json:"focus,omitempty"`
	Supplements  []Supplement `bson:"supplements,omitempty" json:"supplements,omitempty"`
	Guidelines   []string     `bson:"guidelines,omitempty" json:"guidelines,omitempty"`
}

// HealthProfile is the customer's health information captured when the protocol was built.
type HealthProfile struct {
	Age           *float64 `bson:"age,omitempty" json:"age,omitempty"`
	Weight        *float64 `bson:"weight,omitempty" json:"weight,omitempty"`
	Height        *float64 `bson:"height,omitempty" json:"height,omitempty"`
	ActivityLevel string   `bson:"activityLevel,omitempty" json:"activityLevel,omitempty"`
	HealthGoals   string   `bson:"healthGoals,omitempty" json:"healthGoals,omitempty"`
	Conditions    []string `bson:"conditions" json:"conditions"`
	Medications   string   `bson:"medications,omitempty" json:"medications,omitempty"`
}

// ProtocolConfig is the nested phases/supplements structure of a protocol.
type ProtocolConfig struct {
	Phases           []ProtocolPhase `bson:"phases" json:"phases"`
	HealthProfile    *HealthProfile  `bson:"healthProfile,omitempty" json:"healthProfile,omitempty"`
	GeneratedContent string          `bson:"generatedContent,omitempty" json:"generatedContent,omitempty"`
}

// Protocol is a trainer-owned health protocol. Immutable once created.
type Protocol struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrainerID    primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	TemplateID   string             `bson:"templateId,omitempty" json:"templateId,omitempty"`
	Name         string             `bson:"name" json:"name"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Type         string             `bson:"type" json:"type"`
	DurationDays int                `bson:"durationDays" json:"durationDays"`
	Intensity    string             `bson:"intensity,omitempty" json:"intensity,omitempty"`
	Config       ProtocolConfig     `bson:"config" json:"config"`
	Tags         []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}

// ProtocolCreationRequest is the immutable snapshot a completed wizard session
// is serialized into and posted to the backend.
type ProtocolCreationRequest struct {
	Name             string         `json:"name" binding:"required,max=200"`
	Description      string         `json:"description,omitempty"`
	Type             string         `json:"type" binding:"required"`
	TemplateID       string         `json:"templateId,omitempty"`
	Duration         int            `json:"duration" binding:"required,gt=0"`
	Intensity        string         `json:"intensity,omitempty" binding:"omitempty,oneof=low moderate high"`
	Config           ProtocolConfig `json:"config"`
	Tags             []string       `json:"tags"`
	TargetCustomerID string         `json:"targetCustomerId,omitempty"`
	Generate         bool           `json:"generate,omitempty"`
}
