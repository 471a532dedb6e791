package domain

import "errors"

var (
	// ErrUserNotFound is returned when the user id resolves to nothing.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound is returned when no session exists for the user.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotInProgress rejects actions on a completed session.
	ErrSessionNotInProgress = errors.New("session not in progress")
	// ErrStepMismatch rejects an answer for any step other than the cursor step.
	ErrStepMismatch = errors.New("step does not match current step")
	// ErrConsentRequired rejects submission before all consents are acknowledged.
	ErrConsentRequired = errors.New("consent not acknowledged")
	// ErrMissingAnswer rejects submission/scoring with an unanswered step.
	ErrMissingAnswer = errors.New("missing answer")
	// ErrInvalidAnswer rejects an answer value outside the step's valid range.
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrAlreadyCompleted rejects a restart without the explicit force flag.
	ErrAlreadyCompleted = errors.New("session already completed")
	// ErrInvalidChoice rejects an unrecognized review path value.
	ErrInvalidChoice = errors.New("invalid review path")
	// ErrTestsNotCompleted rejects finish before both review tests are complete.
	ErrTestsNotCompleted = errors.New("review tests not completed")
	// ErrCatalogNotFound indicates the assessment content could not be loaded.
	ErrCatalogNotFound = errors.New("catalog not found")
	// ErrConflict is returned to the losing writer of a concurrent save.
	ErrConflict = errors.New("concurrent modification")
	// ErrStorage wraps backing-store failures; callers must not read
	// business meaning into it.
	ErrStorage = errors.New("storage failure")
)
