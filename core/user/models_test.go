package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStudent_NeedsConsent(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	date := func(y int, m time.Month, d int) *time.Time {
		tm := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &tm
	}

	tests := []struct {
		name    string
		student Student
		wantAge int
		want    bool
	}{
		{name: "unknown date of birth", student: Student{}, want: false},
		{name: "12 years old", student: Student{DateOfBirth: date(2013, time.May, 1)}, wantAge: 12, want: true},
		{name: "13 tomorrow", student: Student{DateOfBirth: date(2013, time.March, 11)}, wantAge: 12, want: true},
		{name: "13 today", student: Student{DateOfBirth: date(2013, time.March, 10)}, wantAge: 13, want: false},
		{name: "minor with consent", student: Student{DateOfBirth: date(2016, time.January, 1), ConsentGrantedAt: &now}, wantAge: 10, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.student.NeedsConsent(now))
			if age, ok := tt.student.Age(now); ok {
				assert.Equal(t, tt.wantAge, age)
			}
		})
	}
}
