package exercise

import (
	"errors"
	"strings"

	"footballeyeq/internal/domain/plan"
)

// Collection holds the exercise catalog, one document per exercise.
const Collection = "exercises"

// Defaults substituted for missing string fields.
const (
	DefaultTitle          = "No title"
	DefaultNA             = "N/A"
	DefaultDifficulty     = "Unknown"
	DefaultPracticeFormat = "General / Mixed"
)

// Domain errors
var (
	ErrEmptyID    = errors.New("exercise id cannot be empty")
	ErrEmptyTitle = errors.New("exercise title cannot be empty")
	ErrBadType    = errors.New("exercise type must be one of: primary, alternate")
)

// Exercise is a drill in the catalog. Title doubles as the identifier used in plans.
// Overview and Description hold Markdown.
type Exercise struct {
	ID                    string            `json:"id"                    yaml:"id"`
	Title                 string            `json:"title"                 yaml:"title"`
	AgeGroup              string            `json:"ageGroup"              yaml:"ageGroup"`
	DecisionTheme         string            `json:"decisionTheme"         yaml:"decisionTheme"`
	PlayerInvolvement     string            `json:"playerInvolvement"     yaml:"playerInvolvement"`
	GameMoment            string            `json:"gameMoment"            yaml:"gameMoment"`
	Difficulty            string            `json:"difficulty"            yaml:"difficulty"`
	PracticeFormat        string            `json:"practiceFormat"        yaml:"practiceFormat"`
	Overview              string            `json:"overview"              yaml:"overview"`
	Description           string            `json:"description"           yaml:"description"`
	ExerciseBreakdownDesc string            `json:"exerciseBreakdownDesc" yaml:"exerciseBreakdownDesc"`
	Image                 string            `json:"image"                 yaml:"image"`
	ExerciseType          plan.ExerciseType `json:"exerciseType"          yaml:"exerciseType"`
}

// Validate checks if the Exercise has valid data.
// PRE: Exercise struct is populated
// POST: Returns nil if valid, error otherwise
func (e *Exercise) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if !e.ExerciseType.IsValid() {
		return ErrBadType
	}
	return nil
}

// ApplyDefaults fills empty descriptive fields with their catalog defaults.
func (e *Exercise) ApplyDefaults() {
	set := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	set(&e.Title, DefaultTitle)
	set(&e.AgeGroup, DefaultNA)
	set(&e.DecisionTheme, DefaultNA)
	set(&e.PlayerInvolvement, DefaultNA)
	set(&e.GameMoment, DefaultNA)
	set(&e.Difficulty, DefaultDifficulty)
	set(&e.PracticeFormat, DefaultPracticeFormat)
	if e.ExerciseType == "" {
		e.ExerciseType = plan.TypePrimary
	}
}

// ToDocument returns the stored shape of the exercise, without its id.
func (e *Exercise) ToDocument() map[string]any {
	return map[string]any{
		"title":                 e.Title,
		"ageGroup":              e.AgeGroup,
		"decisionTheme":         e.DecisionTheme,
		"playerInvolvement":     e.PlayerInvolvement,
		"gameMoment":            e.GameMoment,
		"difficulty":            e.Difficulty,
		"practiceFormat":        e.PracticeFormat,
		"overview":              e.Overview,
		"description":           e.Description,
		"exerciseBreakdownDesc": e.ExerciseBreakdownDesc,
		"image":                 e.Image,
		"exerciseType":          string(e.ExerciseType),
	}
}
