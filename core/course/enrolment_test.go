package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func id(i int64) *int64 { return &i }

func TestMatchEnrolment(t *testing.T) {
	const (
		maths   = 1
		physics = 2
		aqa     = 10
		edexcel = 11
	)

	tests := []struct {
		name       string
		course     Course
		enrolments []Enrolment
		wantID     int64
		wantOk     bool
	}{
		{
			name:       "course without subject never matches",
			course:     Course{ID: 1},
			enrolments: []Enrolment{{ID: 1, SubjectID: maths}},
		},
		{
			name:       "no enrolments",
			course:     Course{ID: 1, SubjectID: id(maths)},
			enrolments: nil,
		},
		{
			name:       "subject mismatch",
			course:     Course{ID: 1, SubjectID: id(maths)},
			enrolments: []Enrolment{{ID: 1, SubjectID: physics}},
		},
		{
			name:       "board-agnostic course matches any board",
			course:     Course{ID: 1, SubjectID: id(maths)},
			enrolments: []Enrolment{{ID: 7, SubjectID: maths, ExamBoardID: id(aqa)}},
			wantID:     7, wantOk: true,
		},
		{
			name:       "same board",
			course:     Course{ID: 1, SubjectID: id(maths), ExamBoardID: id(aqa)},
			enrolments: []Enrolment{{ID: 3, SubjectID: maths, ExamBoardID: id(aqa)}},
			wantID:     3, wantOk: true,
		},
		{
			name:       "other board",
			course:     Course{ID: 1, SubjectID: id(maths), ExamBoardID: id(aqa)},
			enrolments: []Enrolment{{ID: 3, SubjectID: maths, ExamBoardID: id(edexcel)}},
		},
		{
			name:       "board-agnostic enrolment matches boarded course",
			course:     Course{ID: 1, SubjectID: id(maths), ExamBoardID: id(aqa)},
			enrolments: []Enrolment{{ID: 4, SubjectID: maths}},
			wantID:     4, wantOk: true,
		},
		{
			name:   "first match wins",
			course: Course{ID: 1, SubjectID: id(maths)},
			enrolments: []Enrolment{
				{ID: 9, SubjectID: physics},
				{ID: 5, SubjectID: maths, ExamBoardID: id(edexcel)},
				{ID: 6, SubjectID: maths, ExamBoardID: id(aqa)},
			},
			wantID: 5, wantOk: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MatchEnrolment(tt.course, tt.enrolments)
			assert.Equal(t, tt.wantOk, ok)
			if tt.wantOk {
				assert.Equal(t, tt.wantID, got.ID)
			}
		})
	}
}
