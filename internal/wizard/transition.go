package wizard

import "errors"

var (
	ErrAtFirstStep = errors.New("wizard is already at the first step")
	ErrAtLastStep  = errors.New("wizard is already at the generation step")
)

// Complete reports whether the completion predicate of step holds for s.
// It returns nil when it does and a *ValidationError describing the
// offending fields when it does not.
func Complete(s Session, step Step) error {
	return checkStep(s, step)
}

// Validate checks every step before s.Step, in order.
func Validate(s Session) error {
	if !s.Step.Valid() {
		return &ValidationError{Step: s.Step, Fields: map[string]string{"step": "unknown step"}}
	}
	for step := StepClientSelection; step < s.Step; step++ {
		if err := checkStep(s, step); err != nil {
			return err
		}
	}
	return nil
}

// Next advances s by one step. The current step and every step before it
// must be complete; otherwise s is returned unchanged with the validation
// error of the first incomplete step.
func Next(s Session) (Session, error) {
	if !s.Step.Valid() {
		return s, &ValidationError{Step: s.Step, Fields: map[string]string{"step": "unknown step"}}
	}
	if s.Step == StepGeneration {
		return s, ErrAtLastStep
	}
	for step := StepClientSelection; step <= s.Step; step++ {
		if err := checkStep(s, step); err != nil {
			return s, err
		}
	}
	s.Step++
	return s, nil
}

// Back moves s one step towards the start. Entered data is kept.
func Back(s Session) (Session, error) {
	if !s.Step.Valid() {
		return s, &ValidationError{Step: s.Step, Fields: map[string]string{"step": "unknown step"}}
	}
	if s.Step == StepClientSelection {
		return s, ErrAtFirstStep
	}
	s.Step--
	return s, nil
}
