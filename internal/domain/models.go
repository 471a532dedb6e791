package domain

import "time"

// StepKind discriminates catalog steps: a consent acknowledgement or a
// multiple-choice question.
type StepKind string

const (
	StepConsent  StepKind = "consent"
	StepQuestion StepKind = "question"
)

// Option is a selectable answer for a question step. The score weight is
// server-side only and must never reach the client.
type Option struct {
	Label string `json:"label"`
	Score int    `json:"score"`
}

// Step is one entry of an assessment catalog.
type Step struct {
	ID      string   `json:"id"`
	Kind    StepKind `json:"kind"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options,omitempty"`
}

// Band maps an inclusive total-score range to a named interpretation.
type Band struct {
	Min            int    `json:"min"`
	Max            int    `json:"max"`
	Name           string `json:"name"`
	Interpretation string `json:"interpretation"`
}

// Catalog is the ordered, immutable questionnaire content for one
// assessment kind.
type Catalog struct {
	Kind  string `json:"kind"`
	Steps []Step `json:"steps"`
	Bands []Band `json:"bands"`
}

// MaxScore is the highest total the catalog can produce.
func (c Catalog) MaxScore() int {
	total := 0
	for _, s := range c.Steps {
		if s.Kind != StepQuestion {
			continue
		}
		best := 0
		for _, o := range s.Options {
			if o.Score > best {
				best = o.Score
			}
		}
		total += best
	}
	return total
}

// MinScore is the lowest total the catalog can produce.
func (c Catalog) MinScore() int {
	total := 0
	for _, s := range c.Steps {
		if s.Kind != StepQuestion {
			continue
		}
		worst := 0
		for i, o := range s.Options {
			if i == 0 || o.Score < worst {
				worst = o.Score
			}
		}
		total += worst
	}
	return total
}

// SessionStatus is the single source of truth for an assessment session's
// phase; timestamps are informational only.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// Answer is a tagged answer value: Ack is set for consent steps,
// OptionIndex for question steps.
type Answer struct {
	Ack         *bool `json:"ack,omitempty"`
	OptionIndex *int  `json:"optionIndex,omitempty"`
}

// AckAnswer builds a consent acknowledgement value.
func AckAnswer(v bool) Answer {
	return Answer{Ack: &v}
}

// ChoiceAnswer builds a question answer value.
func ChoiceAnswer(idx int) Answer {
	return Answer{OptionIndex: &idx}
}

// AssessmentSession is one user's progress through one catalog kind.
type AssessmentSession struct {
	ID           string            `json:"id"`
	UserID       string            `json:"userId"`
	Kind         string            `json:"kind"`
	Status       SessionStatus     `json:"status"`
	CurrentIndex int               `json:"currentIndex"`
	TotalItems   int               `json:"totalItems"`
	Answers      map[string]Answer `json:"answers"`
	TotalScore   *int              `json:"totalScore,omitempty"`
	Band         *string           `json:"band,omitempty"`
	StartedAt    time.Time         `json:"startedAt"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
}

// AssessmentResult is the historical record of one completed take; wave
// distinguishes repeated takes of the same kind.
type AssessmentResult struct {
	UserID         string    `json:"userId"`
	Kind           string    `json:"kind"`
	Wave           int       `json:"wave"`
	TotalScore     int       `json:"totalScore"`
	Band           string    `json:"band"`
	Interpretation string    `json:"interpretation"`
	CompletedAt    time.Time `json:"completedAt"`
}

// ReviewStatus is the review session's phase.
type ReviewStatus string

const (
	ReviewInProgress      ReviewStatus = "in_progress"
	ReviewCompletedLocked ReviewStatus = "completed_locked"
	ReviewUnlocked        ReviewStatus = "unlocked"
)

// ReviewPath is the user's choice at the review gate.
type ReviewPath string

const (
	PathSkipReview ReviewPath = "skip_review"
	PathReview     ReviewPath = "review"
)

// ReviewResult is computed exactly once at finish and never regenerated;
// entitlement only toggles its visibility.
type ReviewResult struct {
	Summary  string           `json:"summary"`
	Diagrams map[string][]int `json:"diagrams"`
}

// ReviewAnswers holds the two tests' raw answer values, indexed by item.
type ReviewAnswers struct {
	Test1 []int `json:"test1"`
	Test2 []int `json:"test2"`
}

// ReviewSession is one user's two-part relationship review. Version backs
// optimistic concurrency on saves.
type ReviewSession struct {
	ID               string        `json:"id"`
	UserID           string        `json:"userId"`
	Status           ReviewStatus  `json:"status"`
	ChosenPath       ReviewPath    `json:"chosenPath,omitempty"`
	CurrentTest      int           `json:"currentTest"`
	CurrentIndex     int           `json:"currentIndex"`
	Test1CompletedAt *time.Time    `json:"test1CompletedAt,omitempty"`
	Test2CompletedAt *time.Time    `json:"test2CompletedAt,omitempty"`
	Answers          ReviewAnswers `json:"answers"`
	Result           *ReviewResult `json:"result,omitempty"`
	PaywallShownAt   *time.Time    `json:"paywallShownAt,omitempty"`
	UnlockedAt       *time.Time    `json:"unlockedAt,omitempty"`
	StartedAt        time.Time     `json:"startedAt"`
	Version          int           `json:"-"`
}

// Stage is a top-level phase of the treatment curriculum.
type Stage struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	SortOrder int    `json:"sortOrder"`
	Days      []Day  `json:"days"`
}

// Day is one unit of curriculum content within a stage.
type Day struct {
	ID              string `json:"id"`
	StageID         string `json:"stageId"`
	DayNumberIn     int    `json:"dayNumberInStage"`
	GlobalDayNumber int    `json:"globalDayNumber"`
	RequiredPercent int    `json:"requiredPercent"`
	Tasks           []Task `json:"tasks"`
}

// Task is one actionable item of a day.
type Task struct {
	ID            string `json:"id"`
	WeightPercent int    `json:"weightPercent"`
	XPReward      int    `json:"xpReward"`
	IsRequired    bool   `json:"isRequired"`
}

// DayStatus is the per-user day progress phase.
type DayStatus string

const (
	DayActive DayStatus = "active"
	DayDone   DayStatus = "done"
)

// DayProgress is one user's record for one curriculum day.
type DayProgress struct {
	UserID            string     `json:"userId"`
	DayID             string     `json:"dayId"`
	Status            DayStatus  `json:"status"`
	CompletionPercent int        `json:"completionPercent"`
	StartedAt         time.Time  `json:"startedAt"`
	LastActivityAt    time.Time  `json:"lastActivityAt"`
	DeadlineAt        *time.Time `json:"deadlineAt,omitempty"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	XPEarned          int        `json:"xpEarned"`
}

// TaskProgress is one user's record for one task.
type TaskProgress struct {
	UserID string     `json:"userId"`
	TaskID string     `json:"taskId"`
	DayID  string     `json:"dayId"`
	IsDone bool       `json:"isDone"`
	DoneAt *time.Time `json:"doneAt,omitempty"`
}

// Streak is maintained by the external task-completion collaborator and
// read here for display.
type Streak struct {
	UserID          string     `json:"userId"`
	CurrentDays     int        `json:"currentDays"`
	BestDays        int        `json:"bestDays"`
	LastCompletedAt *time.Time `json:"lastCompletedAt,omitempty"`
	YellowCardAt    *time.Time `json:"yellowCardAt,omitempty"`
}

// XPEntry is one append-only ledger row; total XP is the sum.
type XPEntry struct {
	UserID    string    `json:"userId"`
	Amount    int       `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// User carries the raw plan fields owned by the billing collaborator;
// this core reads them and never writes them.
type User struct {
	ID            string     `json:"id"`
	Plan          Plan       `json:"plan"`
	PlanExpiresAt *time.Time `json:"planExpiresAt,omitempty"`
}
