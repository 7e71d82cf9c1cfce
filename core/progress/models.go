package progress

import (
	"time"

	"github.com/trezcool/dos/core"
)

// Repeat flag priorities
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Repeat flag statuses
const (
	FlagActive   = "active"
	FlagResolved = "resolved"
)

// DefaultConfidence is used whenever no usable confidence score is available.
const DefaultConfidence = 0.6

func IsValidPriority(p string) bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Summary is the written review of one session. There is at most one per session.
type Summary struct {
	SessionID    string          `json:"sessionId"`
	SummaryMd    string          `json:"summaryMd"`
	KeyTakeaways core.StringList `json:"keyTakeaways"`
	Citations    core.StringList `json:"citations"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Snapshot records how a student was doing on an enrolment after one session.
type Snapshot struct {
	ID              int64           `json:"id"`
	StudentID       string          `json:"studentId"`
	EnrolmentID     int64           `json:"enrolmentId"`
	TopicID         *int64          `json:"topicId"`
	SessionID       *string         `json:"sessionId"`
	ConfidenceScore float64         `json:"confidenceScore"`
	Strengths       core.StringList `json:"strengths"`
	Improvements    core.StringList `json:"improvements"`
	Focus           core.StringList `json:"focus"`
	GeneratedAt     time.Time       `json:"generatedAt"`
}

// RepeatFlag marks a concept the student should revisit.
type RepeatFlag struct {
	ID             int64      `json:"id"`
	StudentID      string     `json:"studentId"`
	EnrolmentID    int64      `json:"enrolmentId"`
	TopicID        *int64     `json:"topicId"`
	Concept        string     `json:"concept"`
	Reason         string     `json:"reason"`
	Priority       string     `json:"priority"`
	Status         string     `json:"status"`
	ParentAssigned bool       `json:"parentAssigned"`
	FlaggedAt      time.Time  `json:"flaggedAt"`
	ResolvedAt     *time.Time `json:"resolvedAt"`
	SubjectName    string     `json:"subjectName,omitempty"`
}

type SubjectProgress struct {
	EnrolmentID   int64   `json:"enrolmentId"`
	SubjectName   string  `json:"subjectName"`
	AvgConfidence float64 `json:"avgConfidence"`
}

type Stats struct {
	TotalSessions    int `json:"totalSessions"`
	SessionsThisWeek int `json:"sessionsThisWeek"`
}

type Overview struct {
	Stats             Stats             `json:"stats"`
	SubjectProgress   []SubjectProgress `json:"subjectProgress"`
	ActiveRepeatFlags []RepeatFlag      `json:"activeRepeatFlags"`
}
