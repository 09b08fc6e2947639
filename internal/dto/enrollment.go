package dto

// SubmitEnrollmentRequest is a student's proposed selection of offerings.
type SubmitEnrollmentRequest struct {
	OfferingIDs []string `json:"offering_ids" validate:"required,min=1,dive,required"`
}

// SubmitEnrollmentResponse reports the committed selection.
type SubmitEnrollmentResponse struct {
	StudentID   string   `json:"student_id"`
	OfferingIDs []string `json:"offering_ids"`
}

// BucketIssue names a credit bucket that failed validation. Reason is "SHORT"
// when fewer offerings than required were selected and "EXCEEDED" when more.
type BucketIssue struct {
	Credits  int    `json:"credits"`
	Required int    `json:"required"`
	Selected int    `json:"selected"`
	Reason   string `json:"reason"`
}

// CreditEvaluation is the advisory result of validating a selection against
// the configured credit policy.
type CreditEvaluation struct {
	Satisfied    bool          `json:"satisfied"`
	TotalCredits int           `json:"total_credits"`
	CeilingIssue string        `json:"ceiling_issue,omitempty"`
	Buckets      []BucketIssue `json:"buckets,omitempty"`
}

// EnrollmentPreviewResponse combines the credit evaluation with the offerings
// currently out of seats. It never commits anything: the engine re-validates
// everything at submit time.
type EnrollmentPreviewResponse struct {
	Evaluation    CreditEvaluation `json:"evaluation"`
	FullOfferings []string         `json:"full_offerings,omitempty"`
}
