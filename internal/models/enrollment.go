package models

import "time"

// Enrollment captures a student's committed seat in an offering. Rows are
// created by the enrollment engine only and are never updated.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	OfferingID string    `db:"offering_id" json:"offering_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentDetail enriches Enrollment with course display fields.
type EnrollmentDetail struct {
	Enrollment
	CourseID       string `db:"course_id" json:"course_id"`
	CourseName     string `db:"course_name" json:"course_name"`
	Credits        int    `db:"credits" json:"credits"`
	InstructorName string `db:"instructor_name" json:"instructor_name"`
}

// RosterEntry is one enrolled student in an offering's roster.
type RosterEntry struct {
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
}
