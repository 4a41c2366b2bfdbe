package wizard

// HealthInfo is the customer's health information entered in the wizard.
// Numeric fields are optional; when present they must be positive.
type HealthInfo struct {
	Age           *float64 `json:"age,omitempty" validate:"omitempty,finite,gt=0"`
	Weight        *float64 `json:"weight,omitempty" validate:"omitempty,finite,gt=0"`
	Height        *float64 `json:"height,omitempty" validate:"omitempty,finite,gt=0"`
	ActivityLevel string   `json:"activityLevel,omitempty" validate:"max=100"`
	HealthGoals   string   `json:"healthGoals,omitempty"`
	// Conditions may be empty: zero ailments is a valid health profile.
	Conditions  []string `json:"conditions"`
	Medications string   `json:"medications,omitempty"`
}

// Customization holds the protocol settings chosen in the customization step.
type Customization struct {
	Name         string   `json:"name,omitempty" validate:"max=200"`
	Description  string   `json:"description,omitempty"`
	DurationDays int      `json:"duration" validate:"gt=0"`
	Intensity    string   `json:"intensity,omitempty" validate:"omitempty,oneof=low moderate high"`
	Tags         []string `json:"tags,omitempty"`
}

// Session is the in-memory state of one wizard run. It is a value: every
// transition returns a new Session and leaves its input untouched.
type Session struct {
	Step       Step   `json:"step"`
	ClientID   string `json:"clientId,omitempty"`
	TemplateID string `json:"templateId,omitempty"`
	// CustomTemplate is the "skip/custom" alternative to TemplateID.
	CustomTemplate bool          `json:"customTemplate,omitempty"`
	Health         HealthInfo    `json:"health"`
	Custom         Customization `json:"customization"`
	// Generate asks the backend to generate guidance text for the protocol.
	Generate bool `json:"generate,omitempty"`
}

// WithClient selects the customer the protocol is built for.
func (s Session) WithClient(clientID string) Session {
	s.ClientID = clientID
	return s
}

// WithTemplate selects a template and clears the custom choice.
func (s Session) WithTemplate(templateID string) Session {
	s.TemplateID = templateID
	s.CustomTemplate = false
	return s
}

// WithCustomTemplate chooses a blank protocol and clears the template choice.
func (s Session) WithCustomTemplate() Session {
	s.TemplateID = ""
	s.CustomTemplate = true
	return s
}

func (s Session) WithHealth(h HealthInfo) Session {
	s.Health = h.clone()
	return s
}

func (s Session) WithCustomization(c Customization) Session {
	s.Custom = c.clone()
	return s
}

func (s Session) WithGenerate(generate bool) Session {
	s.Generate = generate
	return s
}

// Clone returns a copy that shares no memory with s.
func (s Session) Clone() Session {
	s.Health = s.Health.clone()
	s.Custom = s.Custom.clone()
	return s
}

func (h HealthInfo) clone() HealthInfo {
	h.Age = cloneFloat(h.Age)
	h.Weight = cloneFloat(h.Weight)
	h.Height = cloneFloat(h.Height)
	h.Conditions = cloneStrings(h.Conditions)
	return h
}

func (c Customization) clone() Customization {
	c.Tags = cloneStrings(c.Tags)
	return c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
