package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	After   int64     // sequence > After
	Before  int64     // sequence < Before
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
	Purpose string    // exact purpose match when set
}

// LectureStatus is the processing state of an ingested lecture.
type LectureStatus string

const (
	StatusPending    LectureStatus = "pending"
	StatusProcessing LectureStatus = "processing"
	StatusReady      LectureStatus = "ready"
	StatusFailed     LectureStatus = "failed"
)

// Lecture is an ingested lecture document.
type Lecture struct {
	ID         string
	Filename   string
	FilePath   string
	Status     LectureStatus
	ChunkCount int
	Error      string
	UploadedAt time.Time
	UpdatedAt  time.Time
}

// LectureRepo manages lecture rows.
type LectureRepo interface {
	// Upsert inserts the lecture or replaces its mutable fields. The
	// original upload time of an existing row is kept.
	Upsert(ctx context.Context, l *Lecture) error

	// SetStatus moves a lecture to status. chunkCount and errMsg are
	// stored as given.
	SetStatus(ctx context.Context, id string, status LectureStatus, chunkCount int, errMsg string) error

	// Get returns the lecture, or nil if it does not exist.
	Get(ctx context.Context, id string) (*Lecture, error)

	// List returns all lectures, most recently updated first.
	List(ctx context.Context) ([]Lecture, error)
}

// QA is a persisted question/answer item.
type QA struct {
	ID           int
	LectureID    string
	Question     string
	Answer       string
	QuestionType string
	Difficulty   string
	Fallback     bool
	GeneratedAt  time.Time
}

// QARepo manages generated items.
type QARepo interface {
	// SaveItems stores items for a lecture and returns them with IDs set.
	SaveItems(ctx context.Context, lectureID string, items []QA) ([]QA, error)

	// ListByLecture returns the items of a lecture in insertion order.
	ListByLecture(ctx context.Context, lectureID string) ([]QA, error)

	// Get returns the item, or nil if it does not exist.
	Get(ctx context.Context, id int) (*QA, error)
}

// StudentAnswer is one graded submission.
type StudentAnswer struct {
	ID         int
	QAID       int
	UserID     string
	AnswerText string
	IsCorrect  bool
	AnsweredAt time.Time
}

// DifficultyStats aggregates one difficulty level of a lecture.
type DifficultyStats struct {
	Questions    int
	Answers      int
	Correct      int
	AccuracyRate float64
}

// LectureStats aggregates all answers to a lecture's items.
type LectureStats struct {
	LectureID      string
	TotalQuestions int
	TotalAnswers   int
	CorrectAnswers int
	AccuracyRate   float64 // 0..1, zero when nothing was answered
	ByDifficulty   map[string]DifficultyStats
}

// LectureProgress is one lecture's share of a student's answers.
type LectureProgress struct {
	LectureID string
	Answered  int
	Correct   int
}

// StudentProgress aggregates every answer of one user.
type StudentProgress struct {
	UserID       string
	Answered     int
	Correct      int
	AccuracyRate float64
	ByLecture    []LectureProgress
}

// AnswerRepo records submissions and reports on them.
type AnswerRepo interface {
	// Record stores a graded answer. ID and AnsweredAt are filled in.
	Record(ctx context.Context, a *StudentAnswer) error

	LectureStats(ctx context.Context, lectureID string) (*LectureStats, error)
	StudentProgress(ctx context.Context, userID string) (*StudentProgress, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLM event row.
type LLMRequestEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsage is an aggregate over LLM events grouped by purpose or model.
type LLMUsage struct {
	Purpose      string
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// EventRepo provides append and query access to LLM events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)

	// GetLLMEvent returns one event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error)

	LLMUsageByPurpose(ctx context.Context) ([]LLMUsage, error)
	LLMUsageByModel(ctx context.Context) ([]LLMUsage, error)
}
