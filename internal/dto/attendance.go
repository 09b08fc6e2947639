package dto

// AttendanceMarkEntry is one student's status in a roster submission.
type AttendanceMarkEntry struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required"`
}

// MarkAttendanceRequest is an instructor's roster submission for one date.
type MarkAttendanceRequest struct {
	Date    string                `json:"date" validate:"required"`
	Entries []AttendanceMarkEntry `json:"entries" validate:"required,min=1,dive"`
}

// MarkAttendanceResponse reports how many rows were written.
type MarkAttendanceResponse struct {
	UpsertedCount int `json:"upserted_count"`
}
