package enums

import "fmt"

// ActivationStatus maps to the activation_status enum in Postgres.
type ActivationStatus string

const (
	ActivationStatusBound   ActivationStatus = "bound"
	ActivationStatusUnbound ActivationStatus = "unbound"
)

var validActivationStatuses = []ActivationStatus{
	ActivationStatusBound,
	ActivationStatusUnbound,
}

// String implements fmt.Stringer.
func (a ActivationStatus) String() string {
	return string(a)
}

// IsValid reports whether the value matches the canonical activation_status enum.
func (a ActivationStatus) IsValid() bool {
	for _, candidate := range validActivationStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActivationStatus converts raw input into ActivationStatus.
func ParseActivationStatus(value string) (ActivationStatus, error) {
	for _, candidate := range validActivationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid activation status %q", value)
}
