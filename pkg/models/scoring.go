package models

// Difficulty is the declared difficulty of a single question
type Difficulty string

const (
	DifficultyVeryEasy Difficulty = "very-easy"
	DifficultyEasy     Difficulty = "easy"
	DifficultyMedium   Difficulty = "medium"
	DifficultyHard     Difficulty = "hard"
	DifficultyVeryHard Difficulty = "very-hard"
)

// QuestionMetric is the outcome of one answered question. Created once, never mutated.
type QuestionMetric struct {
	QuestionID       string     `json:"question_id" validate:"required"`
	Correct          bool       `json:"correct"`
	TimeSpentSeconds float64    `json:"time_spent_seconds" validate:"gte=0"`
	HintsUsed        int        `json:"hints_used" validate:"gte=0"`
	Attempts         int        `json:"attempts" validate:"gte=0"`
	Difficulty       Difficulty `json:"difficulty,omitempty" validate:"omitempty,oneof=very-easy easy medium hard very-hard"`
}

// ScoreBreakdown holds the per-exercise statistics behind a score
type ScoreBreakdown struct {
	CorrectAnswers       int     `json:"correct_answers"`
	TotalQuestions       int     `json:"total_questions"`
	Accuracy             int     `json:"accuracy"`       // 0-100, rounded to nearest
	AccuracyExact        float64 `json:"accuracy_exact"` // unrounded
	AverageTimeSeconds   float64 `json:"average_time_seconds"`
	FastestAnswerSeconds float64 `json:"fastest_answer_seconds"`
	SlowestAnswerSeconds float64 `json:"slowest_answer_seconds"`
	CurrentStreak        int     `json:"current_streak"`
	MaxStreak            int     `json:"max_streak"`
	HintsUsed            int     `json:"hints_used"`
	AttemptsCount        int     `json:"attempts_count"`
}

// ScoreCalculation is the result of scoring one exercise submission.
// NormalizedScore always equals Breakdown.Accuracy.
type ScoreCalculation struct {
	BaseScore         int            `json:"base_score"`
	FinalScore        int            `json:"final_score"`
	NormalizedScore   int            `json:"normalized_score"`
	Breakdown         ScoreBreakdown `json:"breakdown"`
	PerformanceRating string         `json:"performance_rating"`
	Passed            bool           `json:"passed"`
}
