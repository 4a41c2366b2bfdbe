package wizard

import "fmt"

// Step is a position in the linear wizard flow.
type Step int

const (
	StepClientSelection Step = iota
	StepTemplateSelection
	StepHealthInformation
	StepCustomization
	StepGeneration
)

// StepCount is the number of wizard steps.
const StepCount = 5

var stepNames = [StepCount]string{
	"client-selection",
	"template-selection",
	"health-information",
	"customization",
	"generation",
}

func (s Step) Valid() bool {
	return s >= StepClientSelection && int(s) < StepCount
}

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}
