package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/restriction"
	"github.com/trezcool/dos/core/session"
)

type sessionRepository struct {
	db *DB
}

var (
	// interface compliance checks
	_ session.Repository       = (*sessionRepository)(nil)
	_ session.TranscriptReader = (*sessionRepository)(nil)
	_ restriction.UsageReader  = (*sessionRepository)(nil)
)

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) Create(_ context.Context, s session.Session) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.sessions[s.ID] = s
	return nil
}

func (repo *sessionRepository) Get(_ context.Context, id string) (session.Session, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.sessions[id]; ok {
		return s, nil
	}
	return session.Session{}, session.ErrNotFound
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func (repo *sessionRepository) List(_ context.Context, studentID string, ordering []core.DBOrdering) ([]session.ListItem, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	items := make([]session.ListItem, 0)
	for _, s := range repo.db.sessions {
		if !s.OwnedBy(studentID) {
			continue
		}
		items = append(items, session.ListItem{
			ID:         s.ID,
			Status:     s.Status,
			RoomName:   s.RoomName,
			CourseName: repo.db.courses[s.CourseID].Name,
			TopicName:  repo.db.topics[s.TopicID].Name,
			CreatedAt:  s.CreatedAt,
			StartedAt:  s.StartedAt,
			EndedAt:    s.EndedAt,
		})
	}

	ord := core.DBOrdering{Field: "createdAt"}
	for _, o := range ordering {
		if o.Field == "createdAt" || o.Field == "startedAt" {
			ord = o
			break
		}
	}
	key := func(it session.ListItem) time.Time {
		if ord.Field == "startedAt" {
			return timeOrZero(it.StartedAt)
		}
		return it.CreatedAt
	}
	sort.SliceStable(items, func(i, j int) bool {
		if ord.Ascending {
			return key(items[i]).Before(key(items[j]))
		}
		return key(items[i]).After(key(items[j]))
	})
	return items, nil
}

func (repo *sessionRepository) GetDetail(_ context.Context, id string) (session.Detail, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	s, ok := repo.db.sessions[id]
	if !ok {
		return session.Detail{}, session.ErrNotFound
	}
	detail := session.Detail{
		Session:    s,
		CourseName: repo.db.courses[s.CourseID].Name,
		TopicName:  repo.db.topics[s.TopicID].Name,
	}
	if tr, ok := repo.db.transcripts[s.ID]; ok {
		detail.TranscriptText = tr.Text
		detail.TranscriptTurns = tr.Turns
	}
	if sum, ok := repo.db.summaries[s.ID]; ok {
		detail.Summary = &sum
	}
	return detail, nil
}

func (repo *sessionRepository) MarkLive(_ context.Context, id string, at time.Time) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	s, ok := repo.db.sessions[id]
	if !ok {
		return false, session.ErrNotFound
	}
	if s.Status != session.StatusPending && s.Status != session.StatusLive {
		return false, nil
	}
	s.Status = session.StatusLive
	if s.StartedAt == nil {
		s.StartedAt = &at
	}
	repo.db.sessions[id] = s
	return true, nil
}

func (repo *sessionRepository) MarkEnded(_ context.Context, id string, at time.Time) (session.Session, bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	s, ok := repo.db.sessions[id]
	if !ok {
		return session.Session{}, false, session.ErrNotFound
	}
	if s.Status == session.StatusSummarized {
		return s, false, nil
	}
	s.Status = session.StatusEnded
	s.EndedAt = &at
	if s.StartedAt != nil {
		secs := int(at.Sub(*s.StartedAt).Seconds())
		if secs < 0 {
			secs = 0
		}
		s.DurationSeconds = &secs
	}
	repo.db.sessions[id] = s
	return s, true, nil
}

func (repo *sessionRepository) Complete(_ context.Context, c session.Completion) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	s, ok := repo.db.sessions[c.SessionID]
	if !ok {
		return session.ErrNotFound
	}

	sum := c.Summary
	if prev, ok := repo.db.summaries[c.SessionID]; ok {
		sum.CreatedAt = prev.CreatedAt
	}
	repo.db.summaries[c.SessionID] = sum

	if c.Snapshot != nil {
		snap := *c.Snapshot
		snap.ID = repo.db.nextID()
		repo.db.snapshots = append(repo.db.snapshots, snap)
	}
	repo.db.addFlags(c.RepeatFlags...)

	if s.Status == session.StatusEnded || s.Status == session.StatusSummarized {
		s.Status = session.StatusSummarized
		repo.db.sessions[c.SessionID] = s
	}
	return nil
}

func (repo *sessionRepository) GetTranscriptText(_ context.Context, sessionID string) (string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.transcripts[sessionID].Text, nil
}

func (repo *sessionRepository) SummarizedMinutes(_ context.Context, studentID string, dayStart, weekStart time.Time) (restriction.Usage, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var usage restriction.Usage
	for _, s := range repo.db.sessions {
		if !s.OwnedBy(studentID) || s.Status != session.StatusSummarized || s.StartedAt == nil {
			continue
		}
		var minutes float64
		switch {
		case s.DurationSeconds != nil:
			minutes = float64(*s.DurationSeconds) / 60
		case s.EndedAt != nil:
			minutes = s.EndedAt.Sub(*s.StartedAt).Minutes()
		}
		if !s.StartedAt.Before(dayStart) {
			usage.DailyMinutes += minutes
		}
		if !s.StartedAt.Before(weekStart) {
			usage.WeeklyMinutes += minutes
		}
	}
	return usage, nil
}
