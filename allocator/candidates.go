package allocator

import "errors"

// ErrNoLocations is returned when the compartment has no availability
// domains to try; the acquisition loop never starts.
var ErrNoLocations = errors.New("allocator: no availability domains to try")

// BuildCandidates fans one template out over the given availability domains,
// preserving their order. The returned slice has one candidate per domain.
func BuildCandidates(tmpl Template, availabilityDomains []string) ([]Candidate, error) {
	if len(availabilityDomains) == 0 {
		return nil, ErrNoLocations
	}
	candidates := make([]Candidate, 0, len(availabilityDomains))
	for _, ad := range availabilityDomains {
		candidates = append(candidates, Candidate{Template: tmpl, AvailabilityDomain: ad})
	}
	return candidates, nil
}
