package restriction

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/dos/core"
)

// BlockedTime is a weekly window during which tutorials are not allowed.
// DayOfWeek follows time.Weekday: 0 is Sunday.
type BlockedTime struct {
	DayOfWeek int    `json:"dayOfWeek" validate:"min=0,max=6"`
	StartTime string `json:"startTime" validate:"required,hhmm"`
	EndTime   string `json:"endTime" validate:"required,hhmm"`
}

// Covers reports whether `now` falls inside the window, both bounds included.
// Times are compared as zero-padded "HH:MM" strings.
func (bt BlockedTime) Covers(now time.Time) bool {
	if int(now.Weekday()) != bt.DayOfWeek {
		return false
	}
	hhmm := now.Format("15:04")
	return bt.StartTime <= hhmm && hhmm <= bt.EndTime
}

func (bt BlockedTime) check() error {
	if bt.DayOfWeek < 0 || bt.DayOfWeek > 6 {
		return errors.Errorf("dayOfWeek %d out of range", bt.DayOfWeek)
	}
	if !core.IsHHMM(bt.StartTime) {
		return errors.Errorf("startTime %q is not HH:MM", bt.StartTime)
	}
	if !core.IsHHMM(bt.EndTime) {
		return errors.Errorf("endTime %q is not HH:MM", bt.EndTime)
	}
	return nil
}

// BlockedTimes is stored as a JSON array column. Entries are checked when read back.
type BlockedTimes []BlockedTime

func (bts BlockedTimes) Value() (driver.Value, error) {
	if bts == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]BlockedTime(bts))
}

func (bts *BlockedTimes) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*bts = BlockedTimes{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("scanning BlockedTimes: unsupported type %T", src)
	}

	// pointers let us tell a missing field from a zero value
	var raw []struct {
		DayOfWeek *int    `json:"dayOfWeek"`
		StartTime *string `json:"startTime"`
		EndTime   *string `json:"endTime"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "scanning BlockedTimes")
	}

	items := make(BlockedTimes, 0, len(raw))
	for i, r := range raw {
		if r.DayOfWeek == nil || r.StartTime == nil || r.EndTime == nil {
			return errors.Errorf("scanning BlockedTimes: entry %d is missing fields", i)
		}
		bt := BlockedTime{DayOfWeek: *r.DayOfWeek, StartTime: *r.StartTime, EndTime: *r.EndTime}
		if err := bt.check(); err != nil {
			return errors.Wrapf(err, "scanning BlockedTimes: entry %d", i)
		}
		items = append(items, bt)
	}
	*bts = items
	return nil
}

// Restriction holds the limits one guardian set for one student.
type Restriction struct {
	ParentID         string       `json:"parentId"`
	StudentID        string       `json:"studentId"`
	MaxDailyMinutes  *int         `json:"maxDailyMinutes"`
	MaxWeeklyMinutes *int         `json:"maxWeeklyMinutes"`
	BlockedTimes     BlockedTimes `json:"blockedTimes"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// Usage is the tutoring time a student already consumed, counting summarized sessions only.
type Usage struct {
	DailyMinutes  float64
	WeeklyMinutes float64
}

type Decision struct {
	Allowed bool
	Reason  string
}

// MandatoryRevision is a concept a guardian requires the student to revisit.
type MandatoryRevision struct {
	EnrolmentID int64  `json:"enrolmentId" validate:"required,min=1"`
	TopicID     *int64 `json:"topicId"`
	Concept     string `json:"concept" validate:"required"`
	Reason      string `json:"reason" validate:"required"`
}

// UpsertRestriction is what a guardian submits to set the limits for a student.
type UpsertRestriction struct {
	StudentID         string              `json:"studentId" validate:"required"`
	MaxDailyMinutes   *int                `json:"maxDailyMinutes" validate:"omitempty,min=0"`
	MaxWeeklyMinutes  *int                `json:"maxWeeklyMinutes" validate:"omitempty,min=0"`
	BlockedTimes      []BlockedTime       `json:"blockedTimes" validate:"omitempty,dive"`
	MandatoryRevision []MandatoryRevision `json:"mandatoryRevision" validate:"omitempty,dive"`
}

func (ur *UpsertRestriction) Clean() {
	ur.StudentID = core.CleanString(ur.StudentID)
	for i := range ur.BlockedTimes {
		ur.BlockedTimes[i].StartTime = core.CleanString(ur.BlockedTimes[i].StartTime)
		ur.BlockedTimes[i].EndTime = core.CleanString(ur.BlockedTimes[i].EndTime)
	}
	for i := range ur.MandatoryRevision {
		ur.MandatoryRevision[i].Concept = core.CleanString(ur.MandatoryRevision[i].Concept)
		ur.MandatoryRevision[i].Reason = core.CleanString(ur.MandatoryRevision[i].Reason)
	}
}
