package repository

import (
	"fmt"
	"strings"
)

// MissingOfferingsError reports offering ids that do not exist.
type MissingOfferingsError struct {
	OfferingIDs []string
}

func (e *MissingOfferingsError) Error() string {
	return fmt.Sprintf("unknown offerings: %s", strings.Join(e.OfferingIDs, ", "))
}

// SeatConflictError reports offerings that ran out of seats during commit.
type SeatConflictError struct {
	OfferingIDs []string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("no seats available in offerings: %s", strings.Join(e.OfferingIDs, ", "))
}

// DuplicateEnrollmentError reports offerings the student already holds.
type DuplicateEnrollmentError struct {
	OfferingIDs []string
}

func (e *DuplicateEnrollmentError) Error() string {
	return fmt.Sprintf("already enrolled in offerings: %s", strings.Join(e.OfferingIDs, ", "))
}
