package models

// CompletionScore values are binary: the host either marks a course
// complete for a student or it does not. No partial credit.
const (
	CompletionScoreComplete   = 100
	CompletionScoreIncomplete = 0
)

// CompletionRecord holds one (student, course) completion flag. At most
// one record exists per course within a category aggregation.
type CompletionRecord struct {
	CourseID int64 `json:"course_id"`
	Complete bool  `json:"complete"`
	Score    int   `json:"score"`
}

// StudentInfo carries the identity fields recorded on first occurrence
// of a student within a category. Values are sanitized (control
// characters stripped, whitespace trimmed) before storage.
type StudentInfo struct {
	ID        int64  `json:"id"`
	IDNumber  string `json:"idnumber"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
}

// StudentAggregate accumulates a student's completion records across
// every course of one category.
type StudentAggregate struct {
	Info        StudentInfo                `json:"student_info"`
	PictureURL  string                     `json:"picture_url"`
	Roles       []RoleAssignment           `json:"roles"`
	Completions map[int64]CompletionRecord `json:"completions"`

	// CompletionAverage is the rounded mean of the student's scores
	// across the whole category, 0 when the student has no records.
	CompletionAverage int `json:"completion_average"`
}

// CourseInfo mirrors the course identity fields inside an aggregation.
type CourseInfo struct {
	ID         int64  `json:"id"`
	IDNumber   string `json:"idnumber"`
	FullName   string `json:"fullname"`
	CategoryID int64  `json:"category_id"`
	StartDate  int64  `json:"start_date"`
}

// CourseAggregate is the per-course slice of an aggregation.
type CourseAggregate struct {
	Info       CourseInfo                  `json:"course_info"`
	Students   map[int64]*StudentAggregate `json:"students"`
	StudentIDs []int64                     `json:"student_ids"`

	// CompletionAverage is the rounded mean of this course's student
	// scores, 0 when the course has no qualifying students.
	CompletionAverage int `json:"course_completion_average"`
}

// CategoryAggregation is the complete rollup for one category. It never
// includes descendant categories; merging is a separate step.
//
// Students and Courses are keyed by id for lookup; StudentIDs and
// CourseIDs carry the stable ascending iteration order.
type CategoryAggregation struct {
	CategoryID int64  `json:"id"`
	Name       string `json:"name"`
	FQN        string `json:"fqn"`

	Courses   map[int64]*CourseAggregate `json:"courses"`
	CourseIDs []int64                    `json:"course_ids"`

	Students   map[int64]*StudentAggregate `json:"students"`
	StudentIDs []int64                     `json:"student_ids"`

	// CompletionAverage is the rounded mean of the per-course averages,
	// 0 when the category has no courses. After tenancy filtering it is
	// recomputed as the mean of the remaining students' averages.
	CompletionAverage int `json:"completion_average"`
}

// HasCourses reports whether the category contributed at least one
// course; categories without courses are excluded from extended-view
// average computation.
func (a *CategoryAggregation) HasCourses() bool {
	return a != nil && len(a.CourseIDs) > 0
}

// ExtendedAggregation is an aggregation merged with all descendant
// categories of the root ("include subcategories" view).
type ExtendedAggregation struct {
	Root        *CategoryAggregation `json:"root"`
	CategoryIDs []int64              `json:"category_ids"`

	Courses   map[int64]*CourseAggregate `json:"all_category_courses"`
	CourseIDs []int64                    `json:"all_course_ids"`

	Students   map[int64]*StudentAggregate `json:"all_category_students"`
	StudentIDs []int64                     `json:"all_student_ids"`

	// CategoryCompletionAverage is the rounded mean of the included
	// categories' completion averages, counting only categories that
	// have at least one course.
	CategoryCompletionAverage int `json:"all_category_completion_average"`

	// StudentCompletionAverage is the rounded mean of the merged
	// students' per-student averages.
	StudentCompletionAverage int `json:"all_students_completion_average"`
}
