package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
	AttendanceStatusExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceRecord is one per-date, per-student status for an offering.
// Uniqueness holds on (student, offering, date); repeat marks overwrite.
type AttendanceRecord struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	OfferingID string           `db:"offering_id" json:"offering_id"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceSummaryRow aggregates a student's attendance for one offering.
// Percentage is computed by the aggregator, not stored.
type AttendanceSummaryRow struct {
	OfferingID     string  `db:"offering_id" json:"offering_id"`
	CourseID       string  `db:"course_id" json:"course_id"`
	CourseName     string  `db:"course_name" json:"course_name"`
	TotalClasses   int     `db:"total_classes" json:"total_classes"`
	PresentClasses int     `db:"present_classes" json:"present_classes"`
	Percentage     float64 `json:"percentage"`
}

// AttendanceSheetRow is one rendered line of an offering's attendance report.
type AttendanceSheetRow struct {
	StudentID      string `db:"student_id" json:"student_id"`
	StudentName    string `db:"student_name" json:"student_name"`
	TotalClasses   int    `db:"total_classes" json:"total_classes"`
	PresentClasses int    `db:"present_classes" json:"present_classes"`
}
