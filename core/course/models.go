package course

type Course struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	SubjectID   *int64 `json:"subjectId"`
	ExamBoardID *int64 `json:"examBoardId"` // nil: board-agnostic
}

type Topic struct {
	ID       int64  `json:"id"`
	CourseID int64  `json:"courseId"`
	Name     string `json:"name"`
}

// BoardSubject is a subject as offered by an exam board, or board-agnostic.
type BoardSubject struct {
	ID          int64  `json:"id"`
	SubjectID   int64  `json:"subjectId"`
	SubjectName string `json:"subjectName"`
	ExamBoardID *int64 `json:"examBoardId"`
	BoardName   string `json:"boardName"`
}

// Enrolment is a student's registration for a subject, optionally under an exam board.
type Enrolment struct {
	ID             int64  `json:"id"`
	StudentID      string `json:"studentId"`
	BoardSubjectID int64  `json:"boardSubjectId"`
	SubjectID      int64  `json:"subjectId"`
	SubjectName    string `json:"subjectName"`
	ExamBoardID    *int64 `json:"examBoardId"` // nil: board-agnostic
	BoardName      string `json:"boardName"`
	ExamYear       *int   `json:"examYear"`
	YearOfStudy    *int   `json:"yearOfStudy"`
}

// NewEnrolment enrols the student in a board subject, or updates the years when already enrolled.
type NewEnrolment struct {
	BoardSubjectID int64 `json:"boardSubjectId" validate:"required,gt=0"`
	ExamYear       int   `json:"examYear" validate:"required,gte=2000,lte=2100"`
	YearOfStudy    int   `json:"currentYearOfStudy" validate:"required,gte=1,lte=14"`
}
