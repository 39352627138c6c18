package enums

import "fmt"

// BusinessStatus captures the review state of a merchant business.
type BusinessStatus string

const (
	BusinessStatusPending   BusinessStatus = "pending"
	BusinessStatusApproved  BusinessStatus = "approved"
	BusinessStatusRejected  BusinessStatus = "rejected"
	BusinessStatusSuspended BusinessStatus = "suspended"
)

var validBusinessStatuses = []BusinessStatus{
	BusinessStatusPending,
	BusinessStatusApproved,
	BusinessStatusRejected,
	BusinessStatusSuspended,
}

// String implements fmt.Stringer.
func (s BusinessStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BusinessStatus.
func (s BusinessStatus) IsValid() bool {
	for _, candidate := range validBusinessStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// BlocksLogin reports whether a session must not be completed for the status.
func (s BusinessStatus) BlocksLogin() bool {
	return s == BusinessStatusPending || s == BusinessStatusRejected
}

// ParseBusinessStatus converts raw input into a BusinessStatus.
func ParseBusinessStatus(value string) (BusinessStatus, error) {
	for _, candidate := range validBusinessStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid business status %q", value)
}
