package app

import (
	"fmt"

	"growth-core-service/internal/domain"
)

// The stepper is the forward-only cursor over an assessment catalog: one
// step is current at a time, only that step may be answered, and a valid
// answer advances the cursor by exactly one. There is no way back; a user
// who wants different answers restarts the session.

// CurrentStep returns the catalog step at the session cursor. ok is false
// once the cursor has passed the last step.
func CurrentStep(catalog domain.Catalog, session domain.AssessmentSession) (domain.Step, bool) {
	if session.CurrentIndex < 0 || session.CurrentIndex >= len(catalog.Steps) {
		return domain.Step{}, false
	}
	return catalog.Steps[session.CurrentIndex], true
}

// Exhausted reports whether every step has been consumed.
func Exhausted(catalog domain.Catalog, session domain.AssessmentSession) bool {
	return session.CurrentIndex >= len(catalog.Steps)
}

// ApplyAnswer records an answer for the current step and advances the
// cursor. The session is left untouched on any rejection: answering a step
// other than the cursor step is ErrStepMismatch, an unacknowledged consent
// or an out-of-range option index is ErrInvalidAnswer.
func ApplyAnswer(catalog domain.Catalog, session *domain.AssessmentSession, kind domain.StepKind, stepID string, answer domain.Answer) error {
	step, ok := CurrentStep(catalog, *session)
	if !ok {
		return fmt.Errorf("%w: session is exhausted", domain.ErrStepMismatch)
	}
	if step.Kind != kind || step.ID != stepID {
		return fmt.Errorf("%w: got %s %q, current is %s %q", domain.ErrStepMismatch, kind, stepID, step.Kind, step.ID)
	}

	switch step.Kind {
	case domain.StepConsent:
		if answer.Ack == nil || !*answer.Ack {
			return fmt.Errorf("%w: consent %q requires acknowledgement", domain.ErrInvalidAnswer, step.ID)
		}
	case domain.StepQuestion:
		if answer.OptionIndex == nil {
			return fmt.Errorf("%w: question %q requires an option index", domain.ErrInvalidAnswer, step.ID)
		}
		if idx := *answer.OptionIndex; idx < 0 || idx >= len(step.Options) {
			return fmt.Errorf("%w: option %d out of range for question %q", domain.ErrInvalidAnswer, idx, step.ID)
		}
	}

	if session.Answers == nil {
		session.Answers = make(map[string]domain.Answer)
	}
	session.Answers[step.ID] = answer
	session.CurrentIndex++
	return nil
}

// ValidateComplete checks that every consent is acknowledged and every
// question answered with an in-range option, naming the offending step.
// Submission callers run this even after exhaustion; answers are never
// trusted as opaque data.
func ValidateComplete(catalog domain.Catalog, answers map[string]domain.Answer) error {
	for _, step := range catalog.Steps {
		answer, ok := answers[step.ID]
		if !ok {
			if step.Kind == domain.StepConsent {
				return fmt.Errorf("%w: consent %q", domain.ErrConsentRequired, step.ID)
			}
			return fmt.Errorf("%w: question %q", domain.ErrMissingAnswer, step.ID)
		}
		switch step.Kind {
		case domain.StepConsent:
			if answer.Ack == nil || !*answer.Ack {
				return fmt.Errorf("%w: consent %q", domain.ErrConsentRequired, step.ID)
			}
		case domain.StepQuestion:
			if answer.OptionIndex == nil {
				return fmt.Errorf("%w: question %q", domain.ErrMissingAnswer, step.ID)
			}
			if idx := *answer.OptionIndex; idx < 0 || idx >= len(step.Options) {
				return fmt.Errorf("%w: option %d out of range for question %q", domain.ErrInvalidAnswer, idx, step.ID)
			}
		}
	}
	return nil
}
