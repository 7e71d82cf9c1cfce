package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/analysis"
	"github.com/trezcool/dos/core/course"
	"github.com/trezcool/dos/core/progress"
	"github.com/trezcool/dos/core/restriction"
	"github.com/trezcool/dos/core/tutor"
	"github.com/trezcool/dos/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("session not found")

	errInvalidCourseTopic = errors.New("invalid course/topic")
	errSessionOver        = errors.New("session has already ended")
	errNotEnrolled        = "not enrolled in this subject/exam board"
	errConsentRequired    = "consent_required"
	errAccountDeleted     = "account_deleted"
	errTermsNotAccepted   = "terms_not_accepted"
	errAgentJoinFailed    = "agent join failed"
)

type (
	Repository interface {
		Create(ctx context.Context, s Session) error
		// Get fails with ErrNotFound.
		Get(ctx context.Context, id string) (Session, error)
		List(ctx context.Context, studentID string, ordering []core.DBOrdering) ([]ListItem, error)
		GetDetail(ctx context.Context, id string) (Detail, error)
		// MarkLive sets the session live unless it already ended; ok is false when it did.
		MarkLive(ctx context.Context, id string, at time.Time) (ok bool, err error)
		// MarkEnded stamps the end of the session unless it is already summarized; ok is false when it is.
		MarkEnded(ctx context.Context, id string, at time.Time) (s Session, ok bool, err error)
		// Complete stores the summary, snapshot and repeat flags and marks the session summarized, atomically.
		Complete(ctx context.Context, c Completion) error
	}

	// RoomService manages the media rooms students and agents meet in.
	RoomService interface {
		// EnsureRoom creates the room, succeeding if it already exists.
		EnsureRoom(ctx context.Context, name string) error
		// MintToken returns a join token for `identity` in the room.
		MintToken(roomName, identity string) (string, error)
	}

	// AgentService asks the voice agent to join a room.
	AgentService interface {
		Join(ctx context.Context, req JoinRequest) error
	}

	// Admission decides whether a student may start a new session now.
	Admission interface {
		Evaluate(ctx context.Context, studentID string, now time.Time) (restriction.Decision, error)
	}

	Summarizer interface {
		Summarize(ctx context.Context, transcript string) (analysis.SummaryResult, error)
	}

	ProgressAnalyzer interface {
		Analyze(ctx context.Context, transcript string) (analysis.ProgressResult, error)
	}

	ServiceDeps struct {
		Conf        *core.Config
		Logger      core.Logger
		Validate    *validator.Validate
		Repo        Repository
		Courses     course.Repository
		Users       user.Repository
		Progress    progress.Repository
		Tutors      tutor.Repository
		Admission   Admission
		Rooms       RoomService
		Agent       AgentService
		Transcripts *TranscriptWaiter
		Summarizer  Summarizer
		Analyzer    ProgressAnalyzer
		Mail        core.EmailService
	}

	// Service runs the session lifecycle: admission, agent start, end and post-session analysis.
	Service struct {
		ServiceDeps
		roomPrefix    string
		tutorDefaults tutor.Persona
	}
)

func NewService(deps ServiceDeps) *Service {
	return &Service{
		ServiceDeps:   deps,
		roomPrefix:    deps.Conf.Session.RoomPrefix,
		tutorDefaults: tutor.Defaults(deps.Conf),
	}
}

// Create admits a new session for the student, prepares its room and stores it as pending.
// Nothing is written before every admission check passed.
func (svc *Service) Create(ctx context.Context, studentID string, data NewSession) (Created, error) {
	if err := svc.Validate.Struct(data); err != nil {
		return Created{}, err
	}

	crs, err := svc.Courses.GetCourse(ctx, data.CourseID)
	if err != nil {
		if errors.Cause(err) == course.ErrCourseNotFound {
			return Created{}, core.NewValidationError(errInvalidCourseTopic)
		}
		return Created{}, errors.Wrap(err, "getting course")
	}
	if _, err = svc.Courses.GetTopic(ctx, crs.ID, data.TopicID); err != nil {
		if errors.Cause(err) == course.ErrTopicNotFound {
			return Created{}, core.NewValidationError(errInvalidCourseTopic)
		}
		return Created{}, errors.Wrap(err, "getting topic")
	}

	now := core.NowFunc()
	decision, err := svc.Admission.Evaluate(ctx, studentID, now)
	if err != nil {
		return Created{}, errors.Wrap(err, "evaluating restrictions")
	}
	if !decision.Allowed {
		return Created{}, core.NewAuthzError(decision.Reason)
	}

	if err = svc.checkAccount(ctx, studentID, now); err != nil {
		return Created{}, err
	}

	var enrolmentID *int64
	if crs.SubjectID != nil {
		enrolments, err := svc.Courses.ListEnrolments(ctx, studentID)
		if err != nil {
			return Created{}, errors.Wrap(err, "listing enrolments")
		}
		enr, ok := course.MatchEnrolment(crs, enrolments)
		if !ok {
			return Created{}, core.NewAuthzError(errNotEnrolled)
		}
		enrolmentID = &enr.ID
	}

	id := uuid.New().String()
	roomName := svc.roomPrefix + id
	if err = svc.Rooms.EnsureRoom(ctx, roomName); err != nil {
		return Created{}, errors.Wrap(err, "ensuring room")
	}
	token, err := svc.Rooms.MintToken(roomName, studentID)
	if err != nil {
		return Created{}, errors.Wrap(err, "minting participant token")
	}

	sess := Session{
		ID:               id,
		StudentID:        &studentID,
		EnrolmentID:      enrolmentID,
		CourseID:         crs.ID,
		TopicID:          data.TopicID,
		RoomName:         roomName,
		ParticipantToken: token,
		Status:           StatusPending,
		CreatedAt:        now.UTC(),
	}
	if err = svc.Repo.Create(ctx, sess); err != nil {
		return Created{}, errors.Wrap(err, "creating session")
	}
	return Created{SessionID: id, RoomName: roomName, ParticipantToken: token}, nil
}

// checkAccount gates deleted accounts, then unaccepted terms, then missing guardian consent.
// Identities without a student profile pass.
func (svc *Service) checkAccount(ctx context.Context, studentID string, now time.Time) error {
	student, err := svc.Users.GetStudent(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "getting student")
	}
	switch {
	case student.IsDeleted():
		return core.NewAuthzError(errAccountDeleted)
	case student.TermsAcceptedAt == nil:
		return core.NewAuthzError(errTermsNotAccepted)
	case student.NeedsConsent(now):
		return core.NewAuthzError(errConsentRequired)
	}
	return nil
}

func (svc *Service) getOwned(ctx context.Context, studentID, sessionID string) (Session, error) {
	sess, err := svc.Repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Session{}, core.NewNotFoundError("session")
		}
		return Session{}, errors.Wrap(err, "getting session")
	}
	if !sess.OwnedBy(studentID) {
		return Session{}, core.NewNotFoundError("session")
	}
	return sess, nil
}

// StartAgent asks the agent to join the session's room, then marks the session live.
// The status is left untouched when the agent refuses.
func (svc *Service) StartAgent(ctx context.Context, studentID string, data StartAgent) error {
	if err := svc.Validate.Struct(data); err != nil {
		return err
	}
	overrides := ModelOverrides{}
	if data.ModelOverrides != nil {
		overrides = *data.ModelOverrides
		overrides.Clean()
	}

	sess, err := svc.getOwned(ctx, studentID, data.SessionID)
	if err != nil {
		return err
	}
	if !sess.Status.CanTransitionTo(StatusLive) {
		return core.NewValidationError(errSessionOver)
	}

	req, err := svc.joinRequest(ctx, sess, studentID, overrides)
	if err != nil {
		return errors.Wrap(err, "building join request")
	}
	if err = svc.Agent.Join(ctx, req); err != nil {
		if _, ok := errors.Cause(err).(*core.UpstreamError); ok {
			return err
		}
		svc.Logger.Error(fmt.Sprintf("joining agent to %s", sess.RoomName), errors.Wrap(err, "joining agent"), sess.LogFields())
		return core.NewUpstreamError("agent", 0, errAgentJoinFailed)
	}

	ok, err := svc.Repo.MarkLive(ctx, sess.ID, core.NowFunc().UTC())
	if err != nil {
		return errors.Wrap(err, "marking session live")
	}
	if !ok {
		return core.NewValidationError(errSessionOver)
	}
	return nil
}

// joinRequest gathers the tutor persona, active repeat flags and last recommended focus of the enrolment.
func (svc *Service) joinRequest(ctx context.Context, sess Session, studentID string, overrides ModelOverrides) (JoinRequest, error) {
	persona := tutor.Persona{}
	flags := make([]RepeatFlag, 0)
	focus := make([]string, 0)

	if sess.EnrolmentID != nil {
		p, err := svc.Tutors.GetPersona(ctx, studentID, *sess.EnrolmentID)
		if err != nil && errors.Cause(err) != tutor.ErrNotFound {
			return JoinRequest{}, errors.Wrap(err, "getting tutor persona")
		}
		persona = p

		active, err := svc.Progress.ActiveRepeatFlags(ctx, studentID, *sess.EnrolmentID)
		if err != nil {
			return JoinRequest{}, errors.Wrap(err, "listing repeat flags")
		}
		for _, f := range active {
			if f.Concept == "" || f.Reason == "" || f.Priority == "" {
				continue
			}
			flags = append(flags, RepeatFlag{Concept: f.Concept, Reason: f.Reason, Priority: f.Priority})
		}

		snap, err := svc.Progress.LatestSnapshot(ctx, studentID, *sess.EnrolmentID)
		switch {
		case err == nil:
			for _, f := range snap.Focus {
				if f != "" {
					focus = append(focus, f)
				}
			}
		case errors.Cause(err) != progress.ErrNotFound:
			return JoinRequest{}, errors.Wrap(err, "getting latest snapshot")
		}
	}
	persona = persona.Resolve(svc.tutorDefaults, overrides.DeepgramTtsModel)

	return JoinRequest{
		RoomName:           sess.RoomName,
		SessionID:          sess.ID,
		CourseID:           sess.CourseID,
		TopicID:            sess.TopicID,
		StudentID:          studentID,
		EnrolmentID:        sess.EnrolmentID,
		TutorName:          persona.Name,
		PersonalityPrompt:  persona.PersonalityPrompt,
		TutorVoiceModel:    persona.VoiceModel,
		TutorTTSSpeed:      persona.TTSSpeed,
		RepeatFlags:        flags,
		RecommendedFocus:   focus,
		AgentOpenAIModel:   overrides.AgentOpenAIModel,
		DeepgramSttModel:   overrides.DeepgramSttModel,
		DeepgramTtsModel:   overrides.DeepgramTtsModel,
		SilenceNudgeAfterS: overrides.SilenceNudgeAfterS,
	}, nil
}

// End stamps the session as ended, then runs the post-session pipeline inline.
// If the pipeline fails the session stays ended; calling End again retries it.
// Ending a summarized session is a no-op.
func (svc *Service) End(ctx context.Context, studentID string, data End) error {
	if err := svc.Validate.Struct(data); err != nil {
		return err
	}
	sess, err := svc.getOwned(ctx, studentID, data.SessionID)
	if err != nil {
		return err
	}
	if sess.Status == StatusSummarized {
		return nil
	}

	sess, ok, err := svc.Repo.MarkEnded(ctx, sess.ID, core.NowFunc().UTC())
	if err != nil {
		return errors.Wrap(err, "marking session ended")
	}
	if !ok {
		return nil
	}
	return svc.summarize(ctx, sess)
}

// Resummarize re-runs the post-session pipeline for a session stuck at ended.
func (svc *Service) Resummarize(ctx context.Context, sessionID string) error {
	sess, err := svc.Repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewNotFoundError("session")
		}
		return errors.Wrap(err, "getting session")
	}
	if sess.Status != StatusEnded {
		return core.NewValidationError(errors.Errorf("session is %s, only ended sessions can be summarized", sess.Status))
	}
	return svc.summarize(ctx, sess)
}

func (svc *Service) summarize(ctx context.Context, sess Session) error {
	text, err := svc.Transcripts.Wait(ctx, sess.ID)
	if err != nil {
		return errors.Wrap(err, "waiting for transcript")
	}

	withProgress := sess.EnrolmentID != nil && sess.StudentID != nil

	var sum analysis.SummaryResult
	var prog analysis.ProgressResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sum, err = svc.Summarizer.Summarize(gctx, text)
		return errors.Wrap(err, "summarizing")
	})
	if withProgress {
		g.Go(func() error {
			var err error
			prog, err = svc.Analyzer.Analyze(gctx, text)
			return errors.Wrap(err, "analysing progress")
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}

	now := core.NowFunc().UTC()
	c := Completion{
		SessionID: sess.ID,
		Summary: progress.Summary{
			SessionID:    sess.ID,
			SummaryMd:    sum.SummaryMd,
			KeyTakeaways: sum.KeyTakeaways,
			Citations:    sum.Citations,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	if withProgress {
		topicID := sess.TopicID
		sessionID := sess.ID
		c.Snapshot = &progress.Snapshot{
			StudentID:       *sess.StudentID,
			EnrolmentID:     *sess.EnrolmentID,
			TopicID:         &topicID,
			SessionID:       &sessionID,
			ConfidenceScore: prog.ConfidenceScore,
			Strengths:       prog.Strengths,
			Improvements:    prog.Improvements,
			Focus:           prog.Focus,
			GeneratedAt:     now,
		}
		for _, item := range prog.Repeat {
			c.RepeatFlags = append(c.RepeatFlags, progress.RepeatFlag{
				StudentID:   *sess.StudentID,
				EnrolmentID: *sess.EnrolmentID,
				TopicID:     &topicID,
				Concept:     item.Concept,
				Reason:      item.Reason,
				Priority:    item.Priority,
				Status:      progress.FlagActive,
				FlaggedAt:   now,
			})
		}
	}

	if err = svc.Repo.Complete(ctx, c); err != nil {
		return errors.Wrap(err, "completing session")
	}
	svc.notifyGuardians(ctx, sess, sum)
	return nil
}

// List returns the student's sessions, newest first unless ordered otherwise.
func (svc *Service) List(ctx context.Context, studentID string, ordering []core.DBOrdering) ([]ListItem, error) {
	items, err := svc.Repo.List(ctx, studentID, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "listing sessions")
	}
	if items == nil {
		items = []ListItem{}
	}
	return items, nil
}

// Get returns a session with its transcript and summary, to its student or a linked guardian.
func (svc *Service) Get(ctx context.Context, caller user.Identity, sessionID string) (Detail, error) {
	detail, err := svc.Repo.GetDetail(ctx, sessionID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Detail{}, core.NewNotFoundError("session")
		}
		return Detail{}, errors.Wrap(err, "getting session detail")
	}

	switch {
	case caller.IsStudent() && detail.OwnedBy(caller.ID):
		return detail, nil
	case caller.IsParent() && detail.StudentID != nil:
		linked, err := svc.Users.IsLinked(ctx, caller.ID, *detail.StudentID)
		if err != nil {
			return Detail{}, errors.Wrap(err, "checking parent link")
		}
		if linked {
			return detail, nil
		}
	case caller.IsAdmin():
		return detail, nil
	}
	return Detail{}, core.NewNotFoundError("session")
}
