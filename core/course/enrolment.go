package course

// MatchEnrolment returns the first enrolment (in the given order) that covers the course.
// An enrolment covers a course when the subjects are equal and the course has no board,
// the boards are equal, or the enrolment has no board.
// ok is false when nothing matches; courses without a subject never match.
func MatchEnrolment(c Course, enrolments []Enrolment) (Enrolment, bool) {
	if c.SubjectID == nil {
		return Enrolment{}, false
	}
	for _, e := range enrolments {
		if e.SubjectID != *c.SubjectID {
			continue
		}
		if c.ExamBoardID == nil || e.ExamBoardID == nil || *e.ExamBoardID == *c.ExamBoardID {
			return e, true
		}
	}
	return Enrolment{}, false
}
