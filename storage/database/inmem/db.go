package inmemdb

import (
	"sync"
	"time"

	"github.com/trezcool/dos/core/course"
	"github.com/trezcool/dos/core/progress"
	"github.com/trezcool/dos/core/restriction"
	"github.com/trezcool/dos/core/session"
	"github.com/trezcool/dos/core/tutor"
	"github.com/trezcool/dos/core/user"
)

type (
	restrictionKey struct{ parentID, studentID string }
	configKey      struct {
		studentID   string
		enrolmentID int64
	}

	// account holds what only the users table knows about non-student accounts.
	account struct {
		termsAcceptedAt *time.Time
		deletedAt       *time.Time
	}

	// DB is a process-local store holding every table behind one lock,
	// so multi-table writes are atomic like a transaction.
	DB struct {
		mu  sync.RWMutex
		seq int64

		students      map[string]user.Student
		guardians     map[string]user.Guardian
		accounts      map[string]account
		links         map[string]map[string]string // {parentID: {studentID: relationship}}
		inviteCodes   map[string]user.InviteCode
		courses       map[int64]course.Course
		topics        map[int64]course.Topic
		boardSubjects map[int64]course.BoardSubject
		enrolments    []course.Enrolment
		subjectNames  map[int64]string
		personas      map[int64]tutor.Persona
		tutorConfigs  map[configKey]*int64 // persona ID; nil: defaults
		restrictions  map[restrictionKey]restriction.Restriction
		sessions     map[string]session.Session
		transcripts  map[string]session.Transcript
		summaries    map[string]progress.Summary
		snapshots    []progress.Snapshot
		flags        []progress.RepeatFlag
	}
)

func Open() *DB {
	return &DB{
		students:      make(map[string]user.Student),
		guardians:     make(map[string]user.Guardian),
		accounts:      make(map[string]account),
		links:         make(map[string]map[string]string),
		inviteCodes:   make(map[string]user.InviteCode),
		courses:       make(map[int64]course.Course),
		topics:        make(map[int64]course.Topic),
		boardSubjects: make(map[int64]course.BoardSubject),
		subjectNames:  make(map[int64]string),
		personas:      make(map[int64]tutor.Persona),
		tutorConfigs:  make(map[configKey]*int64),
		restrictions:  make(map[restrictionKey]restriction.Restriction),
		sessions:      make(map[string]session.Session),
		transcripts:   make(map[string]session.Transcript),
		summaries:     make(map[string]progress.Summary),
	}
}

// nextID must be called with the write lock held.
func (db *DB) nextID() int64 {
	db.seq++
	return db.seq
}

// Fixtures

func (db *DB) AddStudent(s user.Student) user.Student {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.students[s.ID] = s
	return s
}

// LinkGuardian links the parent account to the student.
func (db *DB) LinkGuardian(g user.Guardian, studentID string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.guardians[g.ID] = g
	db.link(g.ID, studentID, user.DefaultRelationship)
}

// AddGuardian adds a parent account linked to nobody.
func (db *DB) AddGuardian(g user.Guardian) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.guardians[g.ID] = g
}

// link must be called with the write lock held. Existing links keep their relationship.
func (db *DB) link(parentID, studentID, relationship string) {
	if db.links[parentID] == nil {
		db.links[parentID] = make(map[string]string)
	}
	if _, ok := db.links[parentID][studentID]; !ok {
		db.links[parentID][studentID] = relationship
	}
}

func (db *DB) AddSubject(name string) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := db.nextID()
	db.subjectNames[id] = name
	return id
}

func (db *DB) AddCourse(c course.Course) course.Course {
	db.mu.Lock()
	defer db.mu.Unlock()
	if c.ID == 0 {
		c.ID = db.nextID()
	}
	db.courses[c.ID] = c
	return c
}

func (db *DB) AddTopic(t course.Topic) course.Topic {
	db.mu.Lock()
	defer db.mu.Unlock()
	if t.ID == 0 {
		t.ID = db.nextID()
	}
	db.topics[t.ID] = t
	return t
}

func (db *DB) AddBoardSubject(bs course.BoardSubject) course.BoardSubject {
	db.mu.Lock()
	defer db.mu.Unlock()
	if bs.ID == 0 {
		bs.ID = db.nextID()
	}
	if bs.SubjectName == "" {
		bs.SubjectName = db.subjectNames[bs.SubjectID]
	}
	db.boardSubjects[bs.ID] = bs
	return bs
}

func (db *DB) AddEnrolment(e course.Enrolment) course.Enrolment {
	db.mu.Lock()
	defer db.mu.Unlock()
	if e.ID == 0 {
		e.ID = db.nextID()
	}
	if e.SubjectName == "" {
		e.SubjectName = db.subjectNames[e.SubjectID]
	}
	db.enrolments = append(db.enrolments, e)
	return e
}

// SetPersona stores `p` as a persona of the student and picks it for the enrolment.
// An enrolmentID of 0 only stores the persona.
func (db *DB) SetPersona(studentID string, enrolmentID int64, p tutor.Persona) tutor.Persona {
	db.mu.Lock()
	defer db.mu.Unlock()
	p.ID = db.nextID()
	p.StudentID = studentID
	db.personas[p.ID] = p
	if enrolmentID != 0 {
		id := p.ID
		db.tutorConfigs[configKey{studentID, enrolmentID}] = &id
	}
	return p
}

// SetTranscript stands in for the live agent writing the transcript text.
func (db *DB) SetTranscript(sessionID, text string) {
	db.PutTranscript(session.Transcript{SessionID: sessionID, Text: text})
}

// PutTranscript stands in for the live agent writing the whole transcript.
func (db *DB) PutTranscript(tr session.Transcript) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.transcripts[tr.SessionID] = tr
}

// PutSession stores the session as is, bypassing the lifecycle.
func (db *DB) PutSession(s session.Session) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.sessions[s.ID] = s
}

func (db *DB) Snapshots() []progress.Snapshot {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]progress.Snapshot(nil), db.snapshots...)
}

func (db *DB) InviteCodes() []user.InviteCode {
	db.mu.RLock()
	defer db.mu.RUnlock()
	codes := make([]user.InviteCode, 0, len(db.inviteCodes))
	for _, c := range db.inviteCodes {
		codes = append(codes, c)
	}
	return codes
}

// PutInviteCode stores the code as is.
func (db *DB) PutInviteCode(c user.InviteCode) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.inviteCodes[c.Code] = c
}

func (db *DB) RepeatFlags() []progress.RepeatFlag {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]progress.RepeatFlag(nil), db.flags...)
}
