package allocator

import (
	"strconv"
	"strings"
	"time"
)

// FieldSeparator joins the fields of a recorded failure line. External
// tooling greps on it, so it is part of the on-disk contract.
const FieldSeparator = "---"

// Template holds the launch request fields shared by every candidate.
// Built once at startup from config and resolved identifiers; never mutated.
type Template struct {
	CompartmentID string
	Shape         string
	DisplayName   string
	ImageID       string
	SubnetID      string
	Ocpus         float32
	MemoryInGBs   float32
	SSHPublicKey  string
}

// Candidate binds the template to one availability domain.
type Candidate struct {
	Template
	AvailabilityDomain string
}

// Classification drives backoff selection after a failed attempt.
type Classification string

const (
	// Transient means the provider buckled server-side (5xx); a fast retry
	// may win the capacity race.
	Transient Classification = "transient"
	// Rejected covers everything else (out-of-capacity, quota, auth,
	// validation); these rarely clear quickly.
	Rejected Classification = "rejected"
)

// Classify maps a provider HTTP status to a retry classification.
func Classify(status int) Classification {
	if status >= 500 && status <= 599 {
		return Transient
	}
	return Rejected
}

// Failure describes one rejected launch attempt.
type Failure struct {
	Classification     Classification
	StatusCode         int
	Message            string
	Timestamp          time.Time
	AvailabilityDomain string
}

// String renders the failure as a fail-log line (no trailing newline):
// timestamp---availabilityDomain---status---message. The message is written
// raw; if it contains the separator, only the leading three fields stay
// positionally parseable.
func (f Failure) String() string {
	return strings.Join([]string{
		f.Timestamp.UTC().Format(time.RFC3339),
		f.AvailabilityDomain,
		strconv.Itoa(f.StatusCode),
		f.Message,
	}, FieldSeparator)
}

// Outcome is the result of one submit call. Exactly one of InstanceID
// (success) or Failure (rejection) is populated.
type Outcome struct {
	InstanceID string
	Failure    *Failure
}

// TerminationReason is the final, externally observable outcome of a run.
type TerminationReason string

const (
	ReasonAcquired  TerminationReason = "acquired"
	ReasonCancelled TerminationReason = "cancelled"
)

// Result is the terminal state of one acquisition run.
type Result struct {
	Reason             TerminationReason
	InstanceID         string
	AvailabilityDomain string
	Attempts           int
}
