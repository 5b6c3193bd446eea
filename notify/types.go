package notify

import (
	"context"
	"time"
)

// Event announces a successful acquisition to downstream consumers.
type Event struct {
	EnvelopeVersion    string    `json:"envelopeVersion"`
	Type               string    `json:"type"`
	InstanceID         string    `json:"instanceId"`
	AvailabilityDomain string    `json:"availabilityDomain"`
	DisplayName        string    `json:"displayName"`
	AcquiredAt         time.Time `json:"acquiredAt"`
}

type Publisher interface {
	PublishAcquired(ctx context.Context, ev *Event) error
}
