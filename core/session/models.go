package session

import (
	"encoding/json"
	"time"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/progress"
)

// Status is the lifecycle stage of a session. It only ever moves forward:
// pending -> live -> ended -> summarized. A session can end without going live.
type Status string

const (
	StatusPending    Status = "pending"
	StatusLive       Status = "live"
	StatusEnded      Status = "ended"
	StatusSummarized Status = "summarized"
)

var statusRanks = map[Status]int{
	StatusPending:    1,
	StatusLive:       2,
	StatusEnded:      3,
	StatusSummarized: 4,
}

func (s Status) IsValid() bool {
	_, ok := statusRanks[s]
	return ok
}

// CanTransitionTo reports whether `next` may follow `s`.
// Staying live (agent re-join) and staying ended (pipeline retry) are allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	if s == next {
		return s == StatusLive || s == StatusEnded
	}
	return statusRanks[next] > statusRanks[s]
}

type Session struct {
	ID               string     `json:"id"`
	StudentID        *string    `json:"studentId"`
	EnrolmentID      *int64     `json:"enrolmentId"`
	CourseID         int64      `json:"courseId"`
	TopicID          int64      `json:"topicId"`
	RoomName         string     `json:"roomName"`
	ParticipantToken string     `json:"-"`
	Status           Status     `json:"status"`
	StartedAt        *time.Time `json:"startedAt"`
	EndedAt          *time.Time `json:"endedAt"`
	DurationSeconds  *int       `json:"durationSeconds"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// OwnedBy reports whether the session belongs to the student.
func (s Session) OwnedBy(studentID string) bool {
	return s.StudentID != nil && *s.StudentID == studentID
}

// NewSession is what a student submits to book a session.
type NewSession struct {
	CourseID int64 `json:"courseId" validate:"required,min=1"`
	TopicID  int64 `json:"topicId" validate:"required,min=1"`
}

type Created struct {
	SessionID        string `json:"sessionId"`
	RoomName         string `json:"roomName"`
	ParticipantToken string `json:"participantToken"`
}

// ModelOverrides lets the client pick the models the agent runs with.
type ModelOverrides struct {
	AgentOpenAIModel   string   `json:"agentOpenAIModel,omitempty"`
	DeepgramSttModel   string   `json:"deepgramSttModel,omitempty"`
	DeepgramTtsModel   string   `json:"deepgramTtsModel,omitempty"`
	SilenceNudgeAfterS *float64 `json:"silenceNudgeAfterS,omitempty" validate:"omitempty,gt=0"`
}

func (mo *ModelOverrides) Clean() {
	mo.AgentOpenAIModel = core.CleanString(mo.AgentOpenAIModel)
	mo.DeepgramSttModel = core.CleanString(mo.DeepgramSttModel)
	mo.DeepgramTtsModel = core.CleanString(mo.DeepgramTtsModel)
}

type StartAgent struct {
	SessionID      string          `json:"sessionId" validate:"required"`
	ModelOverrides *ModelOverrides `json:"modelOverrides"`
}

type End struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type RepeatFlag struct {
	Concept  string `json:"concept"`
	Reason   string `json:"reason"`
	Priority string `json:"priority"`
}

// JoinRequest is everything the agent needs to join a room and run the session.
type JoinRequest struct {
	RoomName          string       `json:"roomName"`
	SessionID         string       `json:"sessionId"`
	CourseID          int64        `json:"courseId"`
	TopicID           int64        `json:"topicId"`
	StudentID         string       `json:"studentId"`
	EnrolmentID       *int64       `json:"enrolmentId"`
	TutorName         string       `json:"tutorName"`
	PersonalityPrompt string       `json:"personalityPrompt"`
	TutorVoiceModel   string       `json:"tutorVoiceModel"`
	TutorTTSSpeed     string       `json:"tutorTtsSpeed"`
	RepeatFlags       []RepeatFlag `json:"repeatFlags"`
	RecommendedFocus  []string     `json:"recommendedFocus"`

	AgentOpenAIModel   string   `json:"agentOpenAIModel,omitempty"`
	DeepgramSttModel   string   `json:"deepgramSttModel,omitempty"`
	DeepgramTtsModel   string   `json:"deepgramTtsModel,omitempty"`
	SilenceNudgeAfterS *float64 `json:"silenceNudgeAfterS,omitempty"`
}

// Completion holds what the post-session pipeline produced, persisted in one go.
type Completion struct {
	SessionID   string
	Summary     progress.Summary
	Snapshot    *progress.Snapshot
	RepeatFlags []progress.RepeatFlag
}

type ListItem struct {
	ID         string     `json:"id"`
	Status     Status     `json:"status"`
	RoomName   string     `json:"roomName"`
	CourseName string     `json:"courseName"`
	TopicName  string     `json:"topicName"`
	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt"`
	EndedAt    *time.Time `json:"endedAt"`
}

// Transcript is written by the live agent while the session runs.
// Turns is the agent's structured transcript, passed through as is.
type Transcript struct {
	SessionID string
	Text      string
	Turns     json.RawMessage
}

type Detail struct {
	Session
	CourseName      string            `json:"courseName"`
	TopicName       string            `json:"topicName"`
	TranscriptText  string            `json:"transcriptText"`
	TranscriptTurns json.RawMessage   `json:"transcriptJson"`
	Summary         *progress.Summary `json:"summary"`
}

// LogFields identifies the session in error reports.
func (s Session) LogFields() map[string]interface{} {
	fields := map[string]interface{}{
		"sessionId": s.ID,
		"roomName":  s.RoomName,
		"status":    string(s.Status),
	}
	if s.StudentID != nil {
		fields["studentId"] = *s.StudentID
	}
	return fields
}
