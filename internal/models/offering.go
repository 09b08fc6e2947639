package models

import "time"

// Offering is an instructor's section of a course for the term; the unit
// students enroll in. At most one offering exists per (course, instructor).
type Offering struct {
	ID           string    `db:"id" json:"id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	Capacity     int       `db:"capacity" json:"capacity"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// OfferingDetail enriches Offering with display fields and the live seat
// figures. EnrolledCount and AvailableSeats are always derived from the
// enrollment ledger in the query; they are never stored on the row.
type OfferingDetail struct {
	Offering
	CourseName     string `db:"course_name" json:"course_name"`
	Credits        int    `db:"credits" json:"credits"`
	InstructorName string `db:"instructor_name" json:"instructor_name"`
	EnrolledCount  int    `db:"enrolled_count" json:"enrolled_count"`
	AvailableSeats int    `db:"available_seats" json:"available_seats"`
}

// OfferingSeat is the minimal view the enrollment engine locks and re-reads
// inside the commit transaction.
type OfferingSeat struct {
	ID       string `db:"id"`
	Credits  int    `db:"credits"`
	Capacity int    `db:"capacity"`
}

// OfferingFilter scopes offering listings.
type OfferingFilter struct {
	CourseID     string
	InstructorID string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
